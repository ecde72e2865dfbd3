/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package packs stores quiz packs as JSON files and their media alongside.
package packs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/partyquiz/games/quiz"
	"github.com/spf13/afero"
)

const (
	MaxIDLength       = 64
	MaxFilenameLength = 128

	mediaDir = "media"
	packExt  = ".json"
)

var (
	ErrNotFound    = errors.New("pack not found")
	ErrInvalidID   = errors.New("pack id may only contain latin letters, digits, dashes and underscores")
	ErrInvalidPack = errors.New("pack needs an id and a title")
	ErrTooLarge    = errors.New("file too large")
	ErrNoFile      = errors.New("no file selected")

	invalidID       = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	invalidFilename = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// SanitizeID strips everything but [A-Za-z0-9_-] and truncates to
// MaxIDLength. An empty result means the id is unusable.
func SanitizeID(id string) string {
	id = invalidID.ReplaceAllString(id, "")
	if len(id) > MaxIDLength {
		id = id[:MaxIDLength]
	}

	return id
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with an
// underscore and truncates to MaxFilenameLength.
func SanitizeFilename(name string) string {
	name = invalidFilename.ReplaceAllString(name, "_")
	if len(name) > MaxFilenameLength {
		name = name[:MaxFilenameLength]
	}
	if name == "" {
		return "file"
	}

	return name
}

type Summary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	QuestionsCount int    `json:"questionsCount"`
	RoundsCount    int    `json:"roundsCount"`
	AnswerTimeSec  int    `json:"answerTimeSec"`
	TimerMode      string `json:"timerMode"`
}

type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewStore opens the pack directory dir on fsys, creating it and its media
// subdirectory if needed.
func NewStore(fsys afero.Fs, dir string) (*Store, error) {
	if err := fsys.MkdirAll(filepath.Join(dir, mediaDir), 0o755); err != nil {
		return nil, fmt.Errorf("create pack directory: %w", err)
	}

	return &Store{fs: fsys, dir: dir, now: time.Now}, nil
}

func (s *Store) packPath(id string) string {
	return filepath.Join(s.dir, id+packExt)
}

// LoadPack reads pack id. It satisfies quiz.PackLoader.
func (s *Store) LoadPack(id string) (quiz.PackContent, error) {
	safe := SanitizeID(id)
	if safe == "" {
		return quiz.PackContent{}, ErrInvalidID
	}

	data, err := afero.ReadFile(s.fs, s.packPath(safe))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return quiz.PackContent{}, fmt.Errorf("%s: %w", safe, ErrNotFound)
	case err != nil:
		return quiz.PackContent{}, fmt.Errorf("read pack %s: %w", safe, err)
	}

	return quiz.ParsePack(data)
}

// List summarizes every readable pack, ordered by id. Packs that fail to
// parse are skipped and reported through skipped, if non-nil.
func (s *Store) List(skipped func(name string, err error)) ([]Summary, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}

	out := []Summary{}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), packExt) {
			continue
		}

		id := strings.TrimSuffix(name, filepath.Ext(name))

		p, err := s.LoadPack(id)
		if err != nil {
			if skipped != nil {
				skipped(name, err)
			}
			continue
		}

		g := quiz.LoadPackForGame(p)

		out = append(out, Summary{
			ID:             id,
			Title:          p.Title,
			QuestionsCount: len(g.Questions),
			RoundsCount:    len(g.RoundEnds),
			AnswerTimeSec:  g.AnswerSeconds,
			TimerMode:      string(g.TimerMode),
		})
	}

	slices.SortFunc(out, func(a, b Summary) int {
		return strings.Compare(a.ID, b.ID)
	})

	return out, nil
}

// Normalize prepares pack content for storage. Round-based packs are capped
// and cleaned up question by question; legacy flat packs are kept as given.
func Normalize(p quiz.PackContent) quiz.PackContent {
	out := quiz.PackContent{Title: strings.TrimSpace(p.Title)}

	if len(p.Rounds) == 0 {
		out.Questions = p.Questions
		if out.Questions == nil {
			out.Questions = []quiz.RawQuestion{}
		}

		return out
	}

	out.AnswerTimeSec = quiz.Number(quiz.ClampAnswerSeconds(p.AnswerTimeSec))
	if quiz.ParseTimerMode(p.TimerMode) == quiz.TimerManual {
		out.TimerMode = string(quiz.TimerManual)
	}

	for _, round := range p.Rounds[:min(len(p.Rounds), quiz.MaxRounds)] {
		qs := round.Questions[:min(len(round.Questions), quiz.MaxQuestionsPerRound)]

		r := quiz.Round{Questions: make([]quiz.RawQuestion, 0, len(qs))}
		for _, raw := range qs {
			r.Questions = append(r.Questions, quiz.Raw(quiz.NormalizeQuestion(raw)))
		}

		out.Rounds = append(out.Rounds, r)
	}

	return out
}

// Save normalizes p and writes it as pack id, returning the id it was stored under.
func (s *Store) Save(id string, p quiz.PackContent) (string, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(p.Title) == "" {
		return "", ErrInvalidPack
	}

	safe := SanitizeID(id)
	if safe == "" {
		return "", ErrInvalidID
	}

	data, err := json.MarshalIndent(Normalize(p), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode pack %s: %w", safe, err)
	}

	if err := afero.WriteFile(s.fs, s.packPath(safe), data, 0o644); err != nil {
		return "", fmt.Errorf("write pack %s: %w", safe, err)
	}

	return safe, nil
}

// mediaName turns an uploaded filename into a unique stored name by
// appending a millisecond timestamp before the extension.
func mediaName(original string, now time.Time) string {
	base := SanitizeFilename(original)

	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name = "file"
	}

	return name + "-" + strconv.FormatInt(now.UnixMilli(), 10) + ext
}

// SaveMedia stores an upload for pack id and returns its path relative to
// the media root, suitable for a question's image, video or audio field.
// Uploads longer than limit bytes are rejected with ErrTooLarge.
func (s *Store) SaveMedia(id, filename string, r io.Reader, limit int64) (string, error) {
	safe := SanitizeID(id)
	if safe == "" {
		return "", ErrInvalidID
	}

	dir := filepath.Join(s.dir, mediaDir, safe)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}

	name := mediaName(filename, s.now())
	dst := filepath.Join(dir, name)

	f, err := s.fs.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	switch {
	case err != nil:
		_ = s.fs.Remove(dst)
		return "", fmt.Errorf("write %s: %w", name, err)
	case n > limit:
		_ = s.fs.Remove(dst)
		return "", ErrTooLarge
	}

	return safe + "/" + name, nil
}

// Media exposes the media directory for http.FileServer.
func (s *Store) Media() http.FileSystem {
	return afero.NewHttpFs(afero.NewBasePathFs(s.fs, filepath.Join(s.dir, mediaDir)))
}
