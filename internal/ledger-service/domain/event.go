package domain

import (
	"fmt"
	"strings"
	"time"
)

type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventLive      EventStatus = "live"
	EventPaused    EventStatus = "paused"
	EventFinished  EventStatus = "finished"
	EventCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventScheduled, EventLive, EventPaused, EventFinished, EventCancelled:
		return true
	}
	return false
}

// Terminal indica que o evento não aceita mais transições
func (s EventStatus) Terminal() bool {
	return s == EventFinished || s == EventCancelled
}

type Category string

const (
	CategorySports  Category = "sports"
	CategoryEsports Category = "esports"
	CategoryCasino  Category = "casino"
	CategoryLottery Category = "lottery"
	CategoryOther   Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySports, CategoryEsports, CategoryCasino, CategoryLottery, CategoryOther:
		return true
	}
	return false
}

type OptionType string

const (
	OptionWin      OptionType = "win"
	OptionDraw     OptionType = "draw"
	OptionLose     OptionType = "lose"
	OptionOver     OptionType = "over"
	OptionUnder    OptionType = "under"
	OptionHandicap OptionType = "handicap"
	OptionCustom   OptionType = "custom"
)

func (t OptionType) Valid() bool {
	switch t {
	case OptionWin, OptionDraw, OptionLose, OptionOver, OptionUnder, OptionHandicap, OptionCustom:
		return true
	}
	return false
}

// Limites e odd mínima de uma opção
const (
	MinOdds       = 1.01
	DefaultMinBet = int64(1000)
	DefaultMaxBet = int64(100000)
)

// Option é uma opção apostável de um evento
type Option struct {
	Type   OptionType `json:"type"`
	Name   string     `json:"name"`
	Odds   float64    `json:"odds"`
	Line   float64    `json:"line,omitempty"` // over/under/handicap
	Active bool       `json:"isActive"`
	MinBet int64      `json:"minBet"`
	MaxBet int64      `json:"maxBet"`
}

// OptionRef identifica uma opção dentro do evento (type + name)
type OptionRef struct {
	Type OptionType `json:"type"`
	Name string     `json:"name"`
}

func (o Option) Ref() OptionRef { return OptionRef{Type: o.Type, Name: o.Name} }

// Normalize aplica os defaults de limites
func (o Option) Normalize() Option {
	if o.MinBet == 0 {
		o.MinBet = DefaultMinBet
	}
	if o.MaxBet == 0 {
		o.MaxBet = DefaultMaxBet
	}
	return o
}

func (o Option) Validate() error {
	if !o.Type.Valid() {
		return fmt.Errorf("%w: option type %q", ErrInvalidInput, o.Type)
	}
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: option name required", ErrInvalidInput)
	}
	if o.Odds < MinOdds {
		return fmt.Errorf("%w: odds %.2f below %.2f", ErrInvalidInput, o.Odds, MinOdds)
	}
	if o.MinBet <= 0 || o.MaxBet < o.MinBet {
		return fmt.Errorf("%w: bounds [%d,%d]", ErrInvalidInput, o.MinBet, o.MaxBet)
	}
	return nil
}

type Team struct {
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

type Teams struct {
	Home Team `json:"home"`
	Away Team `json:"away"`
}

type Winner string

const (
	WinnerHome Winner = "home"
	WinnerAway Winner = "away"
	WinnerDraw Winner = "draw"
)

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Outcome é o resultado reportado de um evento
type Outcome struct {
	Winner  Winner `json:"winner"`
	Score   Score  `json:"score"`
	Details string `json:"details,omitempty"`
}

func (o Outcome) Validate() error {
	switch o.Winner {
	case WinnerHome, WinnerAway, WinnerDraw:
	default:
		return fmt.Errorf("%w: winner %q", ErrInvalidInput, o.Winner)
	}
	if o.Score.Home < 0 || o.Score.Away < 0 {
		return fmt.Errorf("%w: negative score", ErrInvalidInput)
	}
	return nil
}

// SideTotals agrega apostas por tipo de opção
type SideTotals struct {
	Count  int   `json:"count"`
	Staked int64 `json:"staked"`
}

// Stats é o rollup por evento
type Stats struct {
	CurrentViewers int                       `json:"currentViewers"`
	WagerCount     int                       `json:"totalBets"`
	TotalStaked    int64                     `json:"totalAmount"`
	BySide         map[OptionType]SideTotals `json:"bySide"`
}

func (s Stats) Clone() Stats {
	out := s
	out.BySide = make(map[OptionType]SideTotals, len(s.BySide))
	for k, v := range s.BySide {
		out.BySide[k] = v
	}
	return out
}

// Event é a partida/evento ao vivo com suas opções e estatísticas
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Category    Category    `json:"category"`
	Teams       Teams       `json:"teams"`
	Status      EventStatus `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	Options     []Option    `json:"bettingOptions"`
	Result      *Outcome    `json:"result,omitempty"`
	Stats       Stats       `json:"stats"`
}

// CanWager: apostas só em eventos live ou scheduled
func (e *Event) CanWager() bool {
	return e.Status == EventLive || e.Status == EventScheduled
}

// Clone devolve uma cópia sem aliasing de slices/mapas/ponteiros
func (e *Event) Clone() Event {
	out := *e
	out.Options = append([]Option(nil), e.Options...)
	out.Stats = e.Stats.Clone()
	if e.EndTime != nil {
		t := *e.EndTime
		out.EndTime = &t
	}
	if e.Result != nil {
		r := *e.Result
		out.Result = &r
	}
	return out
}
