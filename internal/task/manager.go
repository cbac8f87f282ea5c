package task

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

var oneUnit = uint256.NewInt(1)

// Manager loads and parses Task definitions.
type Manager struct {
	logger *zap.Logger
}

// TaskConfig represents the structure of the tasks YAML file.
type TaskConfig struct {
	Tasks []struct {
		TaskName       string               `yaml:"task_name"`
		Sender         string               `yaml:"sender"`
		Operation      string               `yaml:"operation"`
		Collection     string               `yaml:"collection"`
		Denom          string               `yaml:"denom"`
		TokenIDs       []string             `yaml:"token_ids"`
		Count          int                  `yaml:"count"`
		Slippage       types.SlippageConfig `yaml:"slippage"`
		Robust         bool                 `yaml:"robust"`
		AssetRecipient string               `yaml:"asset_recipient"`
		DeadlineIn     time.Duration        `yaml:"deadline_in"`
	} `yaml:"tasks"`
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("tasks")}
}

// LoadTasksYAML reads tasks from a YAML file. Invalid rows are skipped with
// a warning; a file without any valid row is an error.
func (m *Manager) LoadTasksYAML(path string) ([]*Task, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for tasks file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.ParseTasks(data)
}

// ParseTasks parses the YAML content of a tasks file.
func (m *Manager) ParseTasks(data []byte) ([]*Task, error) {
	var config TaskConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in configuration")
	}

	now := time.Now()
	tasks := make([]*Task, 0, len(config.Tasks))
	for i, row := range config.Tasks {
		op, err := parseOperation(row.Operation)
		if err != nil {
			m.logger.Warn("Skipping invalid task", zap.String("task_name", row.TaskName), zap.Error(err))
			continue
		}

		task := &Task{
			ID:             i,
			Name:           row.TaskName,
			Sender:         row.Sender,
			Operation:      op,
			Collection:     row.Collection,
			Denom:          row.Denom,
			TokenIDs:       row.TokenIDs,
			Count:          row.Count,
			Slippage:       row.Slippage,
			Robust:         row.Robust,
			AssetRecipient: row.AssetRecipient,
			CreatedAt:      now,
		}
		if row.DeadlineIn > 0 {
			task.Deadline = now.Add(row.DeadlineIn)
		}

		if err := task.Validate(); err != nil {
			m.logger.Warn("Skipping invalid task",
				zap.Int("row", i),
				zap.String("task_name", task.Name),
				zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no valid tasks loaded")
	}

	m.logger.Info("Loaded tasks", zap.Int("count", len(tasks)), zap.Int("skipped", len(config.Tasks)-len(tasks)))
	return tasks, nil
}
