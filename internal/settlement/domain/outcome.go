package domain

// Atributos conhecidos nos resultados por jogador
const (
	AttrGoals   = "goals"
	AttrScore   = "score"
	AttrAssists = "assists"
	AttrSaves   = "saves"
	AttrShots   = "shots"
)

// Atributos agregados no nível do evento
const (
	AttrOvertimeCount = "overtimeCount"
	AttrMatchesPlayed = "matchesPlayed"
)

// Flags booleanas de um resultado
const (
	FlagWentToOvertime = "wentToOvertime"
)

// KnownFlag diz se o resultado publica a flag
func KnownFlag(name string) bool {
	switch name {
	case FlagWentToOvertime:
		return true
	}
	return false
}

// Stats mapeia nome do atributo para valor
type Stats map[string]float64

// Get devolve 0 para atributo ausente
func (s Stats) Get(attr string) float64 {
	if s == nil {
		return 0
	}
	return s[attr]
}

// Add soma other em s
func (s Stats) Add(other Stats) {
	for k, v := range other {
		s[k] += v
	}
}

func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Outcome é o resultado resolvido de um evento, em qualquer nível
type Outcome struct {
	Event      EventRef         `json:"event"`
	WinnerID   string           `json:"winnerId,omitempty"`
	LoserID    string           `json:"loserId,omitempty"`
	Score      string           `json:"score,omitempty"`
	FirstBlood string           `json:"firstBlood,omitempty"`
	MVP        string           `json:"mvp,omitempty"`
	Flags      map[string]bool  `json:"flags,omitempty"`
	Teams      map[string]Stats `json:"teams"`
	Players    map[string]Stats `json:"players"`
	Totals     Stats            `json:"totals,omitempty"`
}

// NewOutcome devolve um Outcome com os mapas inicializados
func NewOutcome(ref EventRef) *Outcome {
	return &Outcome{
		Event:   ref,
		Flags:   map[string]bool{},
		Teams:   map[string]Stats{},
		Players: map[string]Stats{},
		Totals:  Stats{},
	}
}

// Tied indica que não houve vencedor
func (o *Outcome) Tied() bool { return o.WinnerID == "" }

// Merge soma estatísticas de um resultado filho (série, torneio, temporada)
func (o *Outcome) Merge(child *Outcome) {
	if child == nil {
		return
	}
	o.ensureMaps()
	for id, st := range child.Teams {
		if _, ok := o.Teams[id]; !ok {
			o.Teams[id] = Stats{}
		}
		o.Teams[id].Add(st)
	}
	for id, st := range child.Players {
		if _, ok := o.Players[id]; !ok {
			o.Players[id] = Stats{}
		}
		o.Players[id].Add(st)
	}
	o.Totals.Add(child.Totals)
}

func (o *Outcome) ensureMaps() {
	if o.Flags == nil {
		o.Flags = map[string]bool{}
	}
	if o.Teams == nil {
		o.Teams = map[string]Stats{}
	}
	if o.Players == nil {
		o.Players = map[string]Stats{}
	}
	if o.Totals == nil {
		o.Totals = Stats{}
	}
}

// Clone faz cópia profunda, usada pelos stores para não vazar ponteiros
func (o *Outcome) Clone() *Outcome {
	if o == nil {
		return nil
	}
	out := *o
	out.Flags = make(map[string]bool, len(o.Flags))
	for k, v := range o.Flags {
		out.Flags[k] = v
	}
	out.Teams = make(map[string]Stats, len(o.Teams))
	for k, v := range o.Teams {
		out.Teams[k] = v.Clone()
	}
	out.Players = make(map[string]Stats, len(o.Players))
	for k, v := range o.Players {
		out.Players[k] = v.Clone()
	}
	out.Totals = o.Totals.Clone()
	return &out
}
