package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws-rdp-connect/rdpconnect/internal/appconfig"
	"github.com/aws-rdp-connect/rdpconnect/internal/model"
)

type store struct {
	LastConnected map[string]int64 `json:"last_connected"`
}

func filePath() (string, error) {
	dir, err := appconfig.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// Touch records a successful connection to an instance id.
func Touch(instanceID string) error {
	st, err := load()
	if err != nil {
		return err
	}
	if st.LastConnected == nil {
		st.LastConnected = map[string]int64{}
	}
	st.LastConnected[instanceID] = time.Now().Unix()
	return save(st)
}

// LastConnected returns last successful connection timestamps by instance id.
func LastConnected() (map[string]int64, error) {
	st, err := load()
	if err != nil {
		return nil, err
	}
	return st.LastConnected, nil
}

// SortInstancesRecent returns a new slice sorted by recent connections
// (desc), then instance id.
func SortInstancesRecent(insts []model.Instance, last map[string]int64) []model.Instance {
	out := append([]model.Instance(nil), insts...)
	sort.Slice(out, func(i, j int) bool {
		ti := last[out[i].ID]
		tj := last[out[j].ID]
		if ti != tj {
			return ti > tj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func load() (store, error) {
	path, err := filePath()
	if err != nil {
		return store{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store{LastConnected: map[string]int64{}}, nil
		}
		return store{}, err
	}
	var st store
	if err := json.Unmarshal(b, &st); err != nil {
		return store{LastConnected: map[string]int64{}}, nil
	}
	if st.LastConnected == nil {
		st.LastConnected = map[string]int64{}
	}
	return st, nil
}

func save(st store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
