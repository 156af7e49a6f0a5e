package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// A chat session persists the tasks submitted from the interactive queue
// and their outcomes, so past runs can be listed and replayed later.

type sessionMeta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tasks     int       `json:"tasks"`
}

type sessionEntry struct {
	Seq       int       `json:"seq"`
	Prompt    string    `json:"prompt"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func sessionsDir(workspace string) string {
	return filepath.Join(workspace, "sessions")
}

func sessionMetaPath(workspace, id string) string {
	return filepath.Join(sessionsDir(workspace), id+".meta.json")
}

func sessionLogPath(workspace, id string) string {
	return filepath.Join(sessionsDir(workspace), id+".jsonl")
}

func validSessionID(id string) bool {
	if id == "" || len(id) > 80 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func generateSessionID() string {
	return time.Now().Format("20060102-150405")
}

func openOrCreateSession(workspace, requestedID string) (*sessionMeta, bool, error) {
	if err := os.MkdirAll(sessionsDir(workspace), 0o755); err != nil {
		return nil, false, fmt.Errorf("create sessions dir: %w", err)
	}
	id := strings.TrimSpace(requestedID)
	if id == "" {
		id = generateSessionID()
	}
	if !validSessionID(id) {
		return nil, false, fmt.Errorf("invalid session id %q (use letters, numbers, -, _)", id)
	}

	meta, err := loadSessionMeta(workspace, id)
	if err == nil {
		return meta, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, err
	}
	meta = &sessionMeta{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := saveSessionMeta(workspace, meta); err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

func loadSessionMeta(workspace, id string) (*sessionMeta, error) {
	path := sessionMetaPath(workspace, id)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta sessionMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(meta.ID) == "" {
		meta.ID = id
	}
	return &meta, nil
}

func saveSessionMeta(workspace string, meta *sessionMeta) error {
	if err := os.MkdirAll(sessionsDir(workspace), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}
	path := sessionMetaPath(workspace, meta.ID)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func appendSessionEntry(workspace, id string, entry sessionEntry) error {
	if err := os.MkdirAll(sessionsDir(workspace), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(sessionLogPath(workspace, id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return json.NewEncoder(f).Encode(entry)
}

func loadSessionEntries(workspace, id string) ([]sessionEntry, error) {
	f, err := os.Open(sessionLogPath(workspace, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []sessionEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e sessionEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func listSessions(workspace string) ([]sessionMeta, error) {
	entries, err := os.ReadDir(sessionsDir(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []sessionMeta
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		id := strings.TrimSuffix(name, ".meta.json")
		meta, err := loadSessionMeta(workspace, id)
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func cmdSession(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("session requires a subcommand: list, show")
	}
	switch args[0] {
	case "list":
		return cmdSessionList(args[1:])
	case "show":
		return cmdSessionShow(args[1:])
	default:
		return fmt.Errorf("unknown session subcommand %q", args[0])
	}
}

func cmdSessionList(args []string) error {
	fs := flag.NewFlagSet("session list", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace directory (default: current)")
	if _, err := parseFlagsLoose(fs, args); err != nil {
		return err
	}
	ws, err := resolveWorkspace(*workspace)
	if err != nil {
		return err
	}
	sessions, err := listSessions(ws)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  tasks=%d  updated=%s\n", s.ID, s.Tasks, s.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func cmdSessionShow(args []string) error {
	fs := flag.NewFlagSet("session show", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "workspace directory (default: current)")
	tail := fs.Int("tail", 0, "show only the last N entries")
	rest, err := parseFlagsLoose(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("session show requires exactly one session id")
	}
	ws, err := resolveWorkspace(*workspace)
	if err != nil {
		return err
	}
	id := rest[0]
	meta, err := loadSessionMeta(ws, id)
	if err != nil {
		return fmt.Errorf("session %q: %w", id, err)
	}
	entries, err := loadSessionEntries(ws, id)
	if err != nil {
		return err
	}
	if *tail > 0 && len(entries) > *tail {
		entries = entries[len(entries)-*tail:]
	}
	fmt.Printf("session %s (%d tasks, created %s)\n", meta.ID, meta.Tasks, meta.CreatedAt.Format(time.RFC3339))
	for _, e := range entries {
		fmt.Printf("[%s] %s  %s\n", strconv.Itoa(e.Seq), e.Status, e.Prompt)
		if e.Error != "" {
			fmt.Printf("    error: %s\n", e.Error)
		} else if e.Message != "" {
			fmt.Printf("    %s\n", e.Message)
		}
	}
	return nil
}
