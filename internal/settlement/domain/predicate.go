package domain

import "math"

// PredicateKind é a tag do predicado de um wager
type PredicateKind string

const (
	PredicateWinnerEquals      PredicateKind = "winnerEquals"
	PredicateScoreStringEquals PredicateKind = "scoreStringEquals"
	PredicateAttributeCompare  PredicateKind = "attributeCompare"
	PredicateBooleanFlagEquals PredicateKind = "booleanFlagEquals"
	PredicateFirstBloodEquals  PredicateKind = "firstBloodEquals"
	PredicateMVPEquals         PredicateKind = "mvpEquals"
)

// CompareOp é o operador de AttributeCompare
type CompareOp string

const (
	OpExactly CompareOp = "exactly"
	OpMore    CompareOp = "more"
	OpLess    CompareOp = "less"
)

// TargetKind discrimina o alvo de AttributeCompare; resolvido na criação do wager
type TargetKind string

const (
	TargetTeam   TargetKind = "team"
	TargetPlayer TargetKind = "player"
	TargetEvent  TargetKind = "event"
)

type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

type AttributeCompare struct {
	Op        CompareOp `json:"op"`
	Target    Target    `json:"target"`
	Attribute string    `json:"attribute"`
	Threshold float64   `json:"threshold"`
}

type FlagEquals struct {
	Flag  string `json:"flag"`
	Value bool   `json:"value"`
}

// Predicate é uma união etiquetada: só o operando correspondente a Kind é usado
type Predicate struct {
	Kind     PredicateKind     `json:"kind"`
	TeamID   string            `json:"teamId,omitempty"`
	PlayerID string            `json:"playerId,omitempty"`
	Score    string            `json:"score,omitempty"`
	Compare  *AttributeCompare `json:"compare,omitempty"`
	Flag     *FlagEquals       `json:"flag,omitempty"`
}

func WinnerEquals(teamID string) Predicate {
	return Predicate{Kind: PredicateWinnerEquals, TeamID: teamID}
}

func ScoreStringEquals(score string) Predicate {
	return Predicate{Kind: PredicateScoreStringEquals, Score: score}
}

func Compare(op CompareOp, target Target, attribute string, threshold float64) Predicate {
	return Predicate{Kind: PredicateAttributeCompare, Compare: &AttributeCompare{
		Op: op, Target: target, Attribute: attribute, Threshold: threshold,
	}}
}

func BooleanFlagEquals(flag string, value bool) Predicate {
	return Predicate{Kind: PredicateBooleanFlagEquals, Flag: &FlagEquals{Flag: flag, Value: value}}
}

func FirstBloodEquals(teamID string) Predicate {
	return Predicate{Kind: PredicateFirstBloodEquals, TeamID: teamID}
}

func MVPEquals(playerID string) Predicate {
	return Predicate{Kind: PredicateMVPEquals, PlayerID: playerID}
}

// Validate verifica a forma do predicado, sem consultar o storage
func (p Predicate) Validate() error {
	switch p.Kind {
	case PredicateWinnerEquals, PredicateFirstBloodEquals:
		if p.TeamID == "" {
			return Validationf("%s requires teamId", p.Kind)
		}
	case PredicateMVPEquals:
		if p.PlayerID == "" {
			return Validationf("%s requires playerId", p.Kind)
		}
	case PredicateScoreStringEquals:
		if p.Score == "" {
			return Validationf("%s requires score", p.Kind)
		}
	case PredicateAttributeCompare:
		c := p.Compare
		if c == nil {
			return Validationf("%s requires compare operand", p.Kind)
		}
		switch c.Op {
		case OpExactly, OpMore, OpLess:
		default:
			return Validationf("unknown compare operator %q", c.Op)
		}
		switch c.Target.Kind {
		case TargetTeam, TargetPlayer:
			if c.Target.ID == "" {
				return Validationf("%s target requires id", c.Target.Kind)
			}
		case TargetEvent:
		default:
			return Validationf("unknown target kind %q", c.Target.Kind)
		}
		if c.Attribute == "" {
			return Validationf("%s requires attribute", p.Kind)
		}
	case PredicateBooleanFlagEquals:
		if p.Flag == nil || p.Flag.Flag == "" {
			return Validationf("%s requires flag operand", p.Kind)
		}
		if !KnownFlag(p.Flag.Flag) {
			return Validationf("unknown flag %q", p.Flag.Flag)
		}
	default:
		return Validationf("unknown predicate kind %q", p.Kind)
	}
	return nil
}

// Evaluate aplica o predicado ao resultado. ResultVoid quando o resultado
// é indeterminado (empate, first blood ou MVP ausentes).
func Evaluate(p Predicate, o *Outcome) (Result, error) {
	if err := p.Validate(); err != nil {
		return ResultNone, err
	}
	if o == nil {
		return ResultNone, PredicateEvaluationf("no outcome for predicate %s", p.Kind)
	}

	switch p.Kind {
	case PredicateWinnerEquals:
		if err := requireTeam(o, p.TeamID); err != nil {
			return ResultNone, err
		}
		if o.Tied() {
			return ResultVoid, nil
		}
		return verdict(o.WinnerID == p.TeamID), nil

	case PredicateFirstBloodEquals:
		if err := requireTeam(o, p.TeamID); err != nil {
			return ResultNone, err
		}
		if o.FirstBlood == "" {
			return ResultVoid, nil
		}
		return verdict(o.FirstBlood == p.TeamID), nil

	case PredicateMVPEquals:
		if _, ok := o.Players[p.PlayerID]; !ok {
			return ResultNone, PredicateEvaluationf("player %s absent from results of %s", p.PlayerID, o.Event)
		}
		if o.MVP == "" {
			return ResultVoid, nil
		}
		return verdict(o.MVP == p.PlayerID), nil

	case PredicateScoreStringEquals:
		if o.Score == "" {
			return ResultVoid, nil
		}
		return verdict(o.Score == p.Score), nil

	case PredicateAttributeCompare:
		v, err := attributeValue(o, p.Compare)
		if err != nil {
			return ResultNone, err
		}
		return verdict(compare(p.Compare.Op, v, p.Compare.Threshold)), nil

	case PredicateBooleanFlagEquals:
		return verdict(o.Flags[p.Flag.Flag] == p.Flag.Value), nil
	}
	return ResultNone, Validationf("unknown predicate kind %q", p.Kind)
}

func requireTeam(o *Outcome, teamID string) error {
	if _, ok := o.Teams[teamID]; !ok {
		return PredicateEvaluationf("team %s did not take part in %s", teamID, o.Event)
	}
	return nil
}

func attributeValue(o *Outcome, c *AttributeCompare) (float64, error) {
	switch c.Target.Kind {
	case TargetTeam:
		st, ok := o.Teams[c.Target.ID]
		if !ok {
			return 0, PredicateEvaluationf("team %s did not take part in %s", c.Target.ID, o.Event)
		}
		return st.Get(c.Attribute), nil
	case TargetPlayer:
		st, ok := o.Players[c.Target.ID]
		if !ok {
			return 0, PredicateEvaluationf("player %s absent from results of %s", c.Target.ID, o.Event)
		}
		return st.Get(c.Attribute), nil
	case TargetEvent:
		return o.Totals.Get(c.Attribute), nil
	}
	return 0, Validationf("unknown target kind %q", c.Target.Kind)
}

const floatEpsilon = 1e-9

func compare(op CompareOp, v, threshold float64) bool {
	switch op {
	case OpExactly:
		return math.Abs(v-threshold) < floatEpsilon
	case OpMore:
		return v > threshold
	case OpLess:
		return v < threshold
	}
	return false
}

func verdict(agree bool) Result {
	if agree {
		return ResultAgree
	}
	return ResultDisagree
}
