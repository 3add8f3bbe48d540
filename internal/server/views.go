package server

import (
	"time"

	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/questhunt"
)

// QuestView is the player-facing quest. Secret criteria stay server-side.
type QuestView struct {
	ID                     string              `json:"id"`
	Title                  string              `json:"title"`
	Objective              string              `json:"objective"`
	Location               questhunt.LocatedPoint `json:"location"`
	DistanceFromPreviousKm float64             `json:"distanceFromPreviousKm"`
	MediaType              questhunt.MediaType `json:"mediaType"`
	MediaConstraints       string              `json:"mediaConstraints,omitempty"`
	IllustrationRef        string              `json:"illustrationRef,omitempty"`
	MaxDistanceM           *float64            `json:"maxDistanceMeters,omitempty"`
}

type CampaignView struct {
	ID                string              `json:"id"`
	StartCoordinates  geo.Coordinates     `json:"startCoordinates"`
	RangeTier         questhunt.RangeTier `json:"rangeTier"`
	Quests            []QuestView         `json:"quests"`
	CurrentQuestIndex int                 `json:"currentQuestIndex"`
	TotalDistanceKm   float64             `json:"totalDistanceKm"`
	CreatedAt         time.Time           `json:"createdAt"`
}

func questView(q questhunt.Quest) QuestView {
	return QuestView{
		ID:                     q.ID,
		Title:                  q.Title,
		Objective:              q.Objective,
		Location:               q.Location,
		DistanceFromPreviousKm: q.DistanceFromPreviousKm,
		MediaType:              q.MediaType,
		MediaConstraints:       q.MediaConstraints,
		IllustrationRef:        q.IllustrationRef,
		MaxDistanceM:           q.MaxDistanceM,
	}
}

func campaignView(c questhunt.Campaign) CampaignView {
	quests := make([]QuestView, len(c.Quests))
	for i, q := range c.Quests {
		quests[i] = questView(q)
	}
	return CampaignView{
		ID:                c.ID,
		StartCoordinates:  c.StartCoordinates,
		RangeTier:         c.RangeTier,
		Quests:            quests,
		CurrentQuestIndex: c.CurrentQuestIndex,
		TotalDistanceKm:   c.TotalDistanceKm,
		CreatedAt:         c.CreatedAt,
	}
}
