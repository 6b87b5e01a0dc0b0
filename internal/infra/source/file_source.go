// internal/infra/source/file_source.go
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vyalkov-2002/iat-timetable/internal/app"
	"github.com/vyalkov-2002/iat-timetable/internal/domain/schedule"
)

// FileSource reads the output of the external scraper/parser from disk:
// a groups list file plus one JSON file per group and week
// (<dir>/<group>/<week_id>.json, an array of day objects mapping slot
// numbers to {classroom, name}). It implements app.TimetableSource.
type FileSource struct {
	groupsFile string
	dir        string
}

func NewFileSource(groupsFile, dir string) *FileSource {
	return &FileSource{groupsFile: groupsFile, dir: dir}
}

// Groups reads the group list, one id per line, blank lines skipped.
func (s *FileSource) Groups(ctx context.Context) ([]string, error) {
	file, err := os.Open(s.groupsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open groups file: %w", err)
	}
	defer file.Close()

	groups := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			groups = append(groups, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read groups file: %w", err)
	}
	return groups, nil
}

// Load reads the parsed timetable of one group/week. A missing file means
// the scraper produced nothing for that week yet and maps to
// app.ErrNoTimetable.
func (s *FileSource) Load(ctx context.Context, groupID string, week schedule.Week) (schedule.Timetable, error) {
	var tt schedule.Timetable
	path := filepath.Join(s.dir, groupID, week.ID+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tt, fmt.Errorf("group %s, week %s: %w", groupID, week.ID, app.ErrNoTimetable)
		}
		return tt, fmt.Errorf("failed to read timetable file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &tt); err != nil {
		return tt, fmt.Errorf("failed to parse timetable file %s: %w", path, err)
	}
	return tt, nil
}
