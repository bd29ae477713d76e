// Package registry stores floor-plan maps and the units detected or entered
// on them. It is the source of truth for resolving unit labels to points.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/copyleftdev/unitroute/internal/errors"
	"github.com/copyleftdev/unitroute/internal/optimization"
)

var (
	// ErrMapNotFound is returned when a map identifier is unknown.
	ErrMapNotFound = errors.New("map not found")
	// ErrMapExists is returned when a map identifier is already taken.
	ErrMapExists = errors.New("map already exists")
)

func errMapExists(id string) error {
	return apperrors.Wrapf(ErrMapExists, "map %q", id).
		WithOperation("create_map").
		WithComponent("registry").
		WithStatus(http.StatusConflict)
}

// storeErr tags a backend failure with the operation that hit it.
func storeErr(err error, op, msg string) error {
	return apperrors.Wrap(err, msg).WithOperation(op).WithComponent("registry")
}

// Unit is a labelled location on a map.
type Unit struct {
	Label string  `json:"unit"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Floor int     `json:"floor"`
}

// Point converts the unit into an engine point.
func (u Unit) Point() optimization.Point {
	return optimization.Point{ID: u.Label, X: u.X, Y: u.Y, Floor: u.Floor}
}

// MapRecord is a stored floor plan.
type MapRecord struct {
	ID        string    `json:"mapId"`
	ImageURL  string    `json:"imageUrl"`
	Width     *int      `json:"width"`
	Height    *int      `json:"height"`
	Units     []Unit    `json:"units"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Index maps labels to units. When a label appears more than once the first
// occurrence wins.
func (m *MapRecord) Index() map[string]Unit {
	idx := make(map[string]Unit, len(m.Units))
	for _, u := range m.Units {
		if _, ok := idx[u.Label]; !ok {
			idx[u.Label] = u
		}
	}
	return idx
}

// Lookup resolves labels in order and returns the units found together with
// the labels that are not on the map.
func (m *MapRecord) Lookup(labels []string) ([]Unit, []string) {
	idx := m.Index()
	found := make([]Unit, 0, len(labels))
	var missing []string
	for _, label := range labels {
		if u, ok := idx[label]; ok {
			found = append(found, u)
		} else {
			missing = append(missing, label)
		}
	}
	return found, missing
}

// Store persists map records.
type Store interface {
	// CreateMap stores a new record. CreatedAt/UpdatedAt are set by the store.
	CreateMap(ctx context.Context, rec *MapRecord) error
	// GetMap returns the record or ErrMapNotFound.
	GetMap(ctx context.Context, id string) (*MapRecord, error)
	// ReplaceUnits swaps the unit list of a map and returns the updated record.
	ReplaceUnits(ctx context.Context, id string, units []Unit) (*MapRecord, error)
	Close() error
}

// NewMapID returns a map identifier of the form "<unix millis>-<8 hex>".
func NewMapID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

// ValidateUnits rejects unit lists that cannot be routed over.
func ValidateUnits(units []Unit) error {
	for i, u := range units {
		if strings.TrimSpace(u.Label) == "" {
			return optimization.NewErrorf(optimization.KindInvalidInput, "unit %d has an empty label", i).
				WithComponent("registry")
		}
		if math.IsNaN(u.X) || math.IsInf(u.X, 0) || math.IsNaN(u.Y) || math.IsInf(u.Y, 0) {
			return optimization.NewErrorf(optimization.KindInvalidInput, "unit %q has non-finite coordinates", u.Label).
				WithComponent("registry")
		}
	}
	return nil
}

func cloneRecord(rec *MapRecord) *MapRecord {
	c := *rec
	c.Units = append([]Unit{}, rec.Units...)
	if rec.Width != nil {
		w := *rec.Width
		c.Width = &w
	}
	if rec.Height != nil {
		h := *rec.Height
		c.Height = &h
	}
	return &c
}
