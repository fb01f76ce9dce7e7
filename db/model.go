package db

import "time"

type Subscriber struct {
	Id        string `bun:",pk"`
	Level     string `bun:",notnull"`
	Hours     string `bun:",notnull"`
	UpdatedAt time.Time
}

type SubscriberRegion struct {
	SubscriberId string `bun:",pk"`
	Region       string `bun:",pk"`
}

type SubscriberStation struct {
	SubscriberId string `bun:",pk"`
	StationId    int    `bun:",pk"`
}

type AlertRecord struct {
	SubscriberId string `bun:",pk"`
	StationId    int    `bun:",pk"`
	Level        string `bun:",notnull"`
	SentAt       time.Time
}

type ConversationState struct {
	Id        string `bun:",pk"`
	Data      string `bun:",notnull"`
	UpdatedAt time.Time
}
