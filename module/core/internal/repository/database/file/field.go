package file

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database"
)

var _ database.FieldRegistry = (*FieldRegistry)(nil)

type fieldsDocument struct {
	Fields []domain.Field `yaml:"fields"`
}

// FieldRegistry serves minefields loaded once from a YAML document of the form
//
//	fields:
//	  - id: BIH-0001
//	    name: Vogosca ridge
//	    center: {latitude: 43.9012, longitude: 18.3451}
//	    radius_meters: 150
type FieldRegistry struct {
	fields []domain.Field
}

func Load(path string) (*FieldRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read fields file %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) (*FieldRegistry, error) {
	var doc fieldsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse fields file")
	}

	seen := make(map[string]struct{}, len(doc.Fields))
	for i, f := range doc.Fields {
		if f.ID == "" {
			return nil, eris.Wrapf(domain.NewInvalidInputError("id", "required"), "field #%d", i)
		}
		if _, dup := seen[f.ID]; dup {
			return nil, eris.Wrapf(domain.NewInvalidInputError("id", "duplicate"), "field %s", f.ID)
		}
		seen[f.ID] = struct{}{}
		if err := f.Center.Validate(); err != nil {
			return nil, eris.Wrapf(err, "field %s", f.ID)
		}
		if f.RadiusMeters <= 0 {
			return nil, eris.Wrapf(domain.NewInvalidInputError("radius_meters", "must be positive"), "field %s", f.ID)
		}
	}

	slices.SortFunc(doc.Fields, func(a, b domain.Field) int { return strings.Compare(a.ID, b.ID) })
	return &FieldRegistry{fields: doc.Fields}, nil
}

func (r *FieldRegistry) GetAllFields(_ context.Context) ([]domain.Field, error) {
	return slices.Clone(r.fields), nil
}
