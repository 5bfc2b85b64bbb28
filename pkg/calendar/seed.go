package calendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML document the console loads into an empty store at startup.
type Seed struct {
	Events []SeedEvent `yaml:"events"`
}

type SeedEvent struct {
	Title       string    `yaml:"title"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
	AllDay      bool      `yaml:"allDay"`
	Color       string    `yaml:"color"`
	Description string    `yaml:"description"`
	MeetingLink string    `yaml:"meetingLink"`
	Members     []Member  `yaml:"members"`
	// Repeat turns the entry into a series.
	Repeat *SeedRepeat `yaml:"repeat,omitempty"`
}

type SeedRepeat struct {
	Frequency string `yaml:"frequency"`
	Interval  int    `yaml:"interval"`
	// Until and Count are mutually exclusive; with neither the series never ends.
	Until time.Time `yaml:"until"`
	Count int       `yaml:"count"`
}

// LoadSeed reads the seed file at path. A missing file is an empty seed.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("no seed file at %s", path)
			return Seed{}, nil
		}
		return Seed{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed, nil
}

func (r SeedRepeat) rule() RecurrenceRule {
	interval := r.Interval
	if interval == 0 {
		interval = 1
	}
	rule := RecurrenceRule{
		Frequency: Frequency(r.Frequency),
		Interval:  interval,
		End:       RecurrenceEnd{Kind: EndNever},
	}
	switch {
	case r.Count > 0:
		rule.End = RecurrenceEnd{Kind: EndAfter, Count: r.Count}
	case !r.Until.IsZero():
		rule.End = RecurrenceEnd{Kind: EndOn, Until: r.Until}
	}
	return rule
}

// Expand turns the seed entries into events, expanding repeating entries under horizon.
func (s Seed) Expand(horizon Horizon) ([]Event, error) {
	var events []Event
	for i, entry := range s.Events {
		e := Event{
			Title:       entry.Title,
			Start:       entry.Start,
			End:         entry.End,
			AllDay:      entry.AllDay,
			Description: entry.Description,
			MeetingLink: entry.MeetingLink,
			Members:     entry.Members,
		}
		if entry.Color != "" {
			color, err := ParseColor(entry.Color)
			if err != nil {
				return nil, fmt.Errorf("seed event %d: %w", i, err)
			}
			e.Color = color
		}
		e = e.prepare()
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("seed event %d: %w", i, err)
		}

		if entry.Repeat == nil {
			e.UID = uuid.New()
			events = append(events, e)
			continue
		}
		instances, err := Expand(e, entry.Repeat.rule(), horizon)
		if err != nil {
			return nil, fmt.Errorf("seed event %d: %w", i, err)
		}
		events = append(events, instances...)
	}
	return events, nil
}

// Seed fills an empty store with events and reports how many were stored. A store that
// already holds events is left untouched.
func (s *Service) Seed(ctx context.Context, events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if err := checkUniqueUIDs(events); err != nil {
		return 0, err
	}

	stored := 0
	err := s.commit(ctx, "seed", "", func(store Store, c *change) error {
		existing, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		if len(existing) > 0 {
			return nil
		}
		if err := store.ReplaceAll(ctx, events); err != nil {
			return fmt.Errorf("failed to seed events: %w", err)
		}
		for _, e := range events {
			c.upserted(e)
		}
		stored = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}
