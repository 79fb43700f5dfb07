// Command run_compare diffs two stored timetable runs cell by cell via
// the HTTP API. Useful when reviewing what changed between versions of
// a term's timetable before publishing the newer one.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

type slot struct {
	Class   string `json:"class"`
	Day     string `json:"day"`
	SlotID  string `json:"slot_id"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Pinned  bool   `json:"pinned"`
}

type envelope struct {
	Data []slot `json:"data"`
}

type cellDiff struct {
	Key    string
	Before slot
	After  slot
	Moved  bool
}

func main() {
	var (
		base     string
		prefix   string
		beforeID string
		afterID  string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&prefix, "api-prefix", "/api/v1", "API route prefix")
	flag.StringVar(&beforeID, "before", "", "run id of the older version")
	flag.StringVar(&afterID, "after", "", "run id of the newer version")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if beforeID == "" || afterID == "" {
		log.Fatal("both -before and -after run ids are required")
	}

	client := &http.Client{Timeout: timeout}
	before, err := fetchSlots(client, base, prefix, beforeID)
	if err != nil {
		log.Fatalf("failed to load run %s: %v", beforeID, err)
	}
	after, err := fetchSlots(client, base, prefix, afterID)
	if err != nil {
		log.Fatalf("failed to load run %s: %v", afterID, err)
	}

	diffs, pinnedMoves := compareRuns(before, after)
	printReport(beforeID, afterID, diffs)

	fmt.Printf("Changed cells: %d, Pinned cells moved: %d\n", len(diffs), pinnedMoves)
	if pinnedMoves > 0 {
		os.Exit(1)
	}
}

func fetchSlots(client *http.Client, base, prefix, runID string) ([]slot, error) {
	url := strings.TrimRight(base, "/") + prefix + "/timetables/" + runID + "/slots"
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return env.Data, nil
}

func cellKey(s slot) string {
	return s.Class + " " + s.Day + " " + s.SlotID
}

func compareRuns(before, after []slot) ([]cellDiff, int) {
	byKey := make(map[string]slot, len(before))
	for _, s := range before {
		byKey[cellKey(s)] = s
	}

	var diffs []cellDiff
	pinnedMoves := 0
	seen := make(map[string]bool, len(after))
	for _, s := range after {
		key := cellKey(s)
		seen[key] = true
		prev, ok := byKey[key]
		if ok && prev.Subject == s.Subject && prev.Teacher == s.Teacher {
			continue
		}
		d := cellDiff{Key: key, Before: prev, After: s, Moved: ok && prev.Pinned}
		if d.Moved {
			pinnedMoves++
		}
		diffs = append(diffs, d)
	}
	for _, s := range before {
		if seen[cellKey(s)] {
			continue
		}
		d := cellDiff{Key: cellKey(s), Before: s, Moved: s.Pinned}
		if d.Moved {
			pinnedMoves++
		}
		diffs = append(diffs, d)
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Key < diffs[j].Key })
	return diffs, pinnedMoves
}

func printReport(beforeID, afterID string, diffs []cellDiff) {
	fmt.Printf("Run Compare Report: %s -> %s\n", beforeID, afterID)
	fmt.Println("=========================================")
	if len(diffs) == 0 {
		fmt.Println("Grids are identical.")
		return
	}
	for _, d := range diffs {
		status := "CHANGED"
		switch {
		case d.Moved:
			status = "PINNED MOVED"
		case d.After.Subject == "" && d.After.Teacher == "":
			status = "REMOVED"
		case d.Before.Subject == "" && d.Before.Teacher == "":
			status = "ADDED"
		}
		fmt.Printf("[%s] %s\n", status, d.Key)
		fmt.Printf("  Before: %s\n", renderCell(d.Before))
		fmt.Printf("  After:  %s\n", renderCell(d.After))
	}
}

func renderCell(s slot) string {
	if s.Subject == "" && s.Teacher == "" {
		return "(blank)"
	}
	out := s.Subject
	if s.Teacher != "" {
		out += " / " + s.Teacher
	}
	if s.Pinned {
		out += " [pinned]"
	}
	return out
}
