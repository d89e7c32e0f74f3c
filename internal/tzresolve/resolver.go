package tzresolve

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/EgorLis/kingdombot/internal/kingdom"
)

var ErrNotFound = errors.New("country not found")

type Resolver struct {
	table  *Table
	logger *slog.Logger
	locs   *otter.Cache[string, *time.Location]
}

func New(table *Table, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		table:  table,
		logger: logger,
		// зоны не меняются за время жизни процесса, вытеснение только по размеру
		locs: otter.Must(&otter.Options[string, *time.Location]{
			MaximumSize:     256,
			InitialCapacity: 64,
		}),
	}
}

// Resolve ищет первую запись таблицы, где ключ — подстрока ввода или ввод — подстрока ключа.
// Короткие синонимы ("us", "uk") могут совпасть внутри других слов: "russia" даст
// America/New_York, потому что "us" стоит в таблице раньше "russia".
func (r *Resolver) Resolve(country string) (string, error) {
	in := strings.ToLower(strings.TrimSpace(country))
	// Пустая строка — подстрока любого ключа и совпала бы с первой записью
	// (America/New_York). Сообщение без текста, например одно вложение,
	// считаем неизвестной страной.
	if in == "" {
		return "", r.notFound(country)
	}
	for _, e := range r.table.entries {
		if strings.Contains(in, e.Country) || strings.Contains(e.Country, in) {
			r.logger.Debug("country resolved", "input", country, "match", e.Country, "timezone", e.Timezone)
			return e.Timezone, nil
		}
	}
	return "", r.notFound(country)
}

// Location загружает *time.Location с кэшированием.
func (r *Resolver) Location(name string) (*time.Location, error) {
	if loc, ok := r.locs.GetIfPresent(name); ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	r.locs.Set(name, loc)
	return loc, nil
}

// ResolveLocation = Resolve + Location.
func (r *Resolver) ResolveLocation(country string) (*time.Location, error) {
	tz, err := r.Resolve(country)
	if err != nil {
		return nil, err
	}
	loc, err := r.Location(tz)
	if err != nil {
		return nil, kingdom.WrapError(err, kingdom.CodeInvalidCountry, err.Error())
	}
	return loc, nil
}

func (r *Resolver) notFound(country string) error {
	return kingdom.WrapError(ErrNotFound, kingdom.CodeInvalidCountry,
		fmt.Sprintf("unknown country %q", country))
}
