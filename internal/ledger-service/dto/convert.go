package dto

import (
	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
	"github.com/radieske/livebet-ledger/pkg/contracts/events"
)

func Wager(w domain.Wager) events.Wager {
	return events.Wager{
		ID:           w.ID,
		UserID:       w.UserID,
		EventID:      w.EventID,
		OptionType:   string(w.Option.Type),
		OptionName:   w.Option.Name,
		Odds:         w.Option.Odds,
		Amount:       w.Amount,
		PotentialWin: w.PotentialWin,
		ActualWin:    w.ActualWin,
		Status:       string(w.Status),
		PlacedAt:     w.PlacedAt,
		SettledAt:    w.SettledAt,
	}
}

func Wagers(ws []domain.Wager) []events.Wager {
	out := make([]events.Wager, 0, len(ws))
	for _, w := range ws {
		out = append(out, Wager(w))
	}
	return out
}

func Options(opts []domain.Option) []events.Option {
	out := make([]events.Option, 0, len(opts))
	for _, o := range opts {
		out = append(out, events.Option{
			Type:   string(o.Type),
			Name:   o.Name,
			Odds:   o.Odds,
			Line:   o.Line,
			Active: o.Active,
			MinBet: o.MinBet,
			MaxBet: o.MaxBet,
		})
	}
	return out
}

func Stats(eventID string, s domain.Stats) events.StatsUpdated {
	by := make(map[string]events.Side, len(s.BySide))
	for k, v := range s.BySide {
		by[string(k)] = events.Side{Count: v.Count, Staked: v.Staked}
	}
	return events.StatsUpdated{
		EventID:        eventID,
		CurrentViewers: s.CurrentViewers,
		WagerCount:     s.WagerCount,
		TotalStaked:    s.TotalStaked,
		BySide:         by,
	}
}

func Outcome(o domain.Outcome) events.Outcome {
	return events.Outcome{
		Winner:  string(o.Winner),
		Score:   events.Score{Home: o.Score.Home, Away: o.Score.Away},
		Details: o.Details,
	}
}

func OutcomeFrom(o events.Outcome) domain.Outcome {
	return domain.Outcome{
		Winner:  domain.Winner(o.Winner),
		Score:   domain.Score{Home: o.Score.Home, Away: o.Score.Away},
		Details: o.Details,
	}
}

func EventStatus(ev domain.Event) events.EventStatusChanged {
	out := events.EventStatusChanged{EventID: ev.ID, Status: string(ev.Status)}
	if ev.Result != nil {
		r := Outcome(*ev.Result)
		out.Result = &r
	}
	return out
}

// OptionsFrom converte o payload de opções; isActive ausente = true
func OptionsFrom(in []OptionRequest) []domain.Option {
	out := make([]domain.Option, 0, len(in))
	for _, o := range in {
		active := true
		if o.Active != nil {
			active = *o.Active
		}
		out = append(out, domain.Option{
			Type:   domain.OptionType(o.Type),
			Name:   o.Name,
			Odds:   o.Odds,
			Line:   o.Line,
			Active: active,
			MinBet: o.MinBet,
			MaxBet: o.MaxBet,
		})
	}
	return out
}
