// Package utilities owns the utility type taxonomy and the GL account
// mappings that classify synchronized expenses.
package utilities

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Icons and ColorSchemes are the symbolic names the admin UI knows how to
// render.
var (
	Icons        = []string{"droplet", "zap", "flame", "waves", "trash", "wifi", "thermometer", "sun", "leaf", "building", "receipt", "circle"}
	ColorSchemes = []string{"blue", "yellow", "orange", "teal", "green", "purple", "red", "gray", "indigo", "pink"}
)

const (
	defaultIcon        = "circle"
	defaultColorScheme = "gray"
)

// SystemType is a built-in utility type.
type SystemType struct {
	Key         string
	Label       string
	Icon        string
	ColorScheme string
}

// SystemTypes returns the built-in types in display order.
func SystemTypes() []SystemType {
	return []SystemType{
		{"water", "Water", "droplet", "blue"},
		{"electric", "Electric", "zap", "yellow"},
		{"gas", "Gas", "flame", "orange"},
		{"sewer", "Sewer", "waves", "teal"},
		{"trash", "Trash", "trash", "green"},
		{"internet", "Internet", "wifi", "purple"},
	}
}

// TypeInput is the admin form for a custom type. Empty fields fall back to
// defaults; Label defaults to the title-cased key.
type TypeInput struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	ColorScheme string `json:"color_scheme"`
}

// Registry manages utility types.
type Registry struct {
	types repository.UtilityTypeRepository
	log   logger.Logger
}

func NewRegistry(types repository.UtilityTypeRepository, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{types: types, log: log.Module("utilities.registry")}
}

func (r *Registry) List(ctx context.Context) ([]entities.UtilityType, error) {
	return r.types.List(ctx)
}

func (r *Registry) Get(ctx context.Context, id uint) (*entities.UtilityType, error) {
	t, err := r.types.Get(ctx, id)
	if err != nil {
		return nil, typeNotFound(err, id)
	}
	return t, nil
}

// Create adds a custom type.
func (r *Registry) Create(ctx context.Context, in TypeInput) (*entities.UtilityType, error) {
	key := strings.TrimSpace(in.Key)
	if !keyPattern.MatchString(key) {
		return nil, &errors.InvalidKeyFormatError{Key: key}
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = DefaultLabel(key)
	}
	if len(label) > 100 {
		return nil, errors.NewValidation("label", "must be at most 100 characters")
	}
	icon, err := pick("icon", in.Icon, defaultIcon, Icons)
	if err != nil {
		return nil, err
	}
	scheme, err := pick("color_scheme", in.ColorScheme, defaultColorScheme, ColorSchemes)
	if err != nil {
		return nil, err
	}

	t := &entities.UtilityType{Key: key, Label: label, Icon: icon, ColorScheme: scheme}
	if err := r.types.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, &errors.DuplicateKeyError{Entity: "utility type", Key: key}
		}
		return nil, err
	}
	r.log.Info("utility type created", logger.String("key", key), logger.Uint64("id", uint64(t.ID)))
	return t, nil
}

// Rename changes the label. The key never changes.
func (r *Registry) Rename(ctx context.Context, id uint, label string) (*entities.UtilityType, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, errors.NewValidation("label", "is required")
	}
	if len(label) > 100 {
		return nil, errors.NewValidation("label", "must be at most 100 characters")
	}
	if err := r.types.UpdateLabel(ctx, id, label); err != nil {
		return nil, typeNotFound(err, id)
	}
	return r.Get(ctx, id)
}

// Delete removes a custom type that no account mapping and no classified
// expense references. Its formatting rules go with it.
func (r *Registry) Delete(ctx context.Context, id uint) error {
	t, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.IsSystem {
		return &errors.InUseError{Entity: "utility type", ID: id, Reason: "system types cannot be deleted"}
	}
	usage, err := r.types.Usage(ctx, id)
	if err != nil {
		return err
	}
	if usage.InUse() {
		return &errors.InUseError{
			Entity:   "utility type",
			ID:       id,
			Reason:   fmt.Sprintf("referenced by %d account mappings and %d classified expenses", usage.Accounts, usage.Expenses),
			Accounts: usage.Accounts,
			Expenses: usage.Expenses,
		}
	}
	if err := r.types.Delete(ctx, id); err != nil {
		return typeNotFound(err, id)
	}
	r.log.Info("utility type deleted", logger.String("key", t.Key))
	return nil
}

// Usage reports what references the type.
func (r *Registry) Usage(ctx context.Context, id uint) (repository.UtilityTypeUsage, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return repository.UtilityTypeUsage{}, err
	}
	return r.types.Usage(ctx, id)
}

// ResetToDefaults removes every unused custom type and restores missing
// system types. It returns how many custom types were removed.
func (r *Registry) ResetToDefaults(ctx context.Context) (int64, error) {
	removed, err := r.types.DeleteUnusedCustom(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := r.SeedSystemTypes(ctx); err != nil {
		return removed, err
	}
	r.log.Info("utility types reset", logger.Int64("removed", removed))
	return removed, nil
}

// SeedSystemTypes creates any missing built-in type and reports how many it
// created. Existing types are left as they are.
func (r *Registry) SeedSystemTypes(ctx context.Context) (int, error) {
	created := 0
	for _, st := range SystemTypes() {
		_, err := r.types.GetByKey(ctx, st.Key)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrUtilityTypeNotFound) {
			return created, err
		}
		err = r.types.Create(ctx, &entities.UtilityType{
			Key:         st.Key,
			Label:       st.Label,
			Icon:        st.Icon,
			ColorScheme: st.ColorScheme,
			IsSystem:    true,
		})
		switch {
		case errors.Is(err, repository.ErrUniqueViolation):
			// another seeder won
		case err != nil:
			return created, err
		default:
			created++
		}
	}
	return created, nil
}

// DefaultLabel turns a key such as "storm_water" into "Storm Water".
func DefaultLabel(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

func pick(field, value, def string, allowed []string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	if !slices.Contains(allowed, value) {
		return "", errors.NewValidation(field, "must be one of %s", strings.Join(allowed, ", "))
	}
	return value, nil
}

func typeNotFound(err error, id uint) error {
	if errors.Is(err, repository.ErrUtilityTypeNotFound) {
		return &errors.NotFoundError{Entity: "utility type", ID: strconv.FormatUint(uint64(id), 10)}
	}
	return err
}
