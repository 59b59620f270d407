package settlement

import (
	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

type Verdict int

const (
	Lose Verdict = iota
	Win
	Push       // linha exata: estorna o stake
	Unresolved // sem regra para o tipo: aposta fica pending
)

func (v Verdict) String() string {
	switch v {
	case Win:
		return "win"
	case Lose:
		return "lose"
	case Push:
		return "push"
	}
	return "unresolved"
}

// Predicate avalia o snapshot da opção contra o resultado
type Predicate func(opt domain.OptionSnapshot, out domain.Outcome) Verdict

// Matrix mapeia tipo de opção → predicado. Tipos ausentes ficam Unresolved.
type Matrix map[domain.OptionType]Predicate

func DefaultMatrix() Matrix {
	return Matrix{
		domain.OptionWin:      winner(domain.WinnerHome),
		domain.OptionLose:     winner(domain.WinnerAway),
		domain.OptionDraw:     winner(domain.WinnerDraw),
		domain.OptionOver:     over,
		domain.OptionUnder:    under,
		domain.OptionHandicap: handicap,
	}
}

func (m Matrix) Evaluate(opt domain.OptionSnapshot, out domain.Outcome) Verdict {
	p, ok := m[opt.Type]
	if !ok || p == nil {
		return Unresolved
	}
	return p(opt, out)
}

func winner(side domain.Winner) Predicate {
	return func(_ domain.OptionSnapshot, out domain.Outcome) Verdict {
		if out.Winner == side {
			return Win
		}
		return Lose
	}
}

func compare(a, b float64) Verdict {
	switch {
	case a > b:
		return Win
	case a == b:
		return Push
	}
	return Lose
}

func over(opt domain.OptionSnapshot, out domain.Outcome) Verdict {
	return compare(float64(out.Score.Home+out.Score.Away), opt.Line)
}

func under(opt domain.OptionSnapshot, out domain.Outcome) Verdict {
	return compare(opt.Line, float64(out.Score.Home+out.Score.Away))
}

// handicap soma a linha ao placar do mandante
func handicap(opt domain.OptionSnapshot, out domain.Outcome) Verdict {
	return compare(float64(out.Score.Home)+opt.Line, float64(out.Score.Away))
}
