package bottle

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mohae/deepcopy"
)

// PersistFunc writes a migrated document back to disk.
type PersistFunc func(Document) error

// migration is one step of the upgrade path. apply returns true when it
// changed doc.
type migration struct {
	name    string
	persist bool
	apply   func(doc Document, m *migrator) (bool, error)
}

// migrations is the declared upgrade path, applied in order on every load.
var migrations = []migration{
	{name: "legacy-env-vars", persist: true, apply: migrateLegacyEnvVars},
	{name: "software-to-application", persist: true, apply: migrateSoftwareEnvironment},
	{name: "clear-latest-executables", apply: clearLatestExecutables},
	{name: "fill-defaults", apply: fillDefaults},
}

type migrator struct {
	bottle  string
	persist PersistFunc
	log     hclog.Logger
}

// Migrate upgrades doc in place. persist may be nil, in which case nothing
// is written. It returns the names of the steps that changed doc.
func Migrate(doc Document, bottle string, persist PersistFunc, log hclog.Logger) ([]string, error) {
	if doc == nil {
		return nil, ErrNilConfig
	}
	m := &migrator{bottle: bottle, persist: persist, log: log}

	var applied []string
	for _, step := range migrations {
		changed, err := step.apply(doc, m)
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", step.name, err)
		}
		if !changed {
			continue
		}
		applied = append(applied, step.name)
		if step.persist {
			if err := m.write(doc); err != nil {
				return applied, err
			}
		}
	}
	return applied, nil
}

func (m *migrator) write(doc Document) error {
	if m.persist == nil {
		return nil
	}
	doc["Update_Date"] = Now()
	if err := m.persist(doc); err != nil {
		return fmt.Errorf("persisting %s: %w", m.bottle, err)
	}
	return nil
}

func migrateLegacyEnvVars(doc Document, m *migrator) (bool, error) {
	params := doc.Parameters()
	if params == nil {
		return false, nil
	}
	raw, ok := params["environment_variables"]
	if !ok {
		return false, nil
	}
	s, _ := raw.(string)

	env, err := ParseEnvString(s)
	if err != nil {
		m.log.Warn("cannot parse legacy environment variables", "bottle", m.bottle, "error", err)
		return false, nil
	}
	if len(env) == 0 {
		return false, nil
	}

	vars := make(map[string]interface{}, len(env))
	for k, v := range env {
		vars[k] = v
	}
	doc["Environment_Variables"] = vars
	delete(params, "environment_variables")
	return true, nil
}

func migrateSoftwareEnvironment(doc Document, _ *migrator) (bool, error) {
	if env, _ := doc["Environment"].(string); env == string(legacySoftware) {
		doc["Environment"] = string(Application)
		return true, nil
	}
	return false, nil
}

// Latest_Executables only lives for one session.
func clearLatestExecutables(doc Document, _ *migrator) (bool, error) {
	l, _ := doc["Latest_Executables"].([]interface{})
	doc["Latest_Executables"] = []interface{}{}
	return len(l) > 0, nil
}

// fillDefaults adds every key of the default table missing from doc,
// writing the document after each one.
func fillDefaults(doc Document, m *migrator) (bool, error) {
	sample := Sample()
	changed := false

	for _, key := range sortedKeys(sample) {
		if _, ok := doc[key]; ok {
			continue
		}
		m.log.Warn("key not in bottle config, updating", "key", key, "bottle", m.bottle)
		doc[key] = deepcopy.Copy(sample[key])
		changed = true
		if err := m.write(doc); err != nil {
			return changed, err
		}
	}

	if doc["Parameters"] == nil {
		doc["Parameters"] = map[string]interface{}{}
	}
	params := doc.Parameters()
	if params == nil {
		return changed, fmt.Errorf("%w: Parameters is not a mapping", ErrMalformed)
	}
	for _, key := range sortedKeys(sample.Parameters()) {
		if _, ok := params[key]; ok {
			continue
		}
		m.log.Warn("key not in bottle config Parameters, updating", "key", key, "bottle", m.bottle)
		params[key] = deepcopy.Copy(sample.Parameters()[key])
		changed = true
		if err := m.write(doc); err != nil {
			return changed, err
		}
	}
	return changed, nil
}
