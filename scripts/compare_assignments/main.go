// Command compare_assignments compares the committed substitute assignments of
// two running deployments, for example a file-backed and a postgres-backed
// instance fed the same absences.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
)

type envelope struct {
	Data  dto.AssignmentsResponse `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type difference struct {
	Key   models.AssignmentKey
	Left  string
	Right string
}

type comparison struct {
	Date        string
	Differences []difference
	Error       error
	LeftCount   int
	RightCount  int
}

func main() {
	var (
		leftBase  string
		rightBase string
		dates     string
		token     string
		prefix    string
		timeout   time.Duration
	)

	flag.StringVar(&leftBase, "left", "http://localhost:8080", "First deployment base URL")
	flag.StringVar(&rightBase, "right", "http://localhost:8081", "Second deployment base URL")
	flag.StringVar(&dates, "dates", time.Now().Format("2006-01-02"), "Comma separated dates to compare")
	flag.StringVar(&token, "token", os.Getenv("API_TOKEN"), "Bearer token sent to both deployments")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API prefix")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	breaking := 0
	for _, date := range splitDates(dates) {
		comp := compareDate(client, leftBase, rightBase, prefix, token, date)
		printReport(comp)
		if comp.Error != nil || len(comp.Differences) > 0 {
			breaking++
		}
	}

	fmt.Printf("Dates with differences: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func splitDates(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func compareDate(client *http.Client, leftBase, rightBase, prefix, token, date string) comparison {
	comp := comparison{Date: date}
	left, err := fetch(client, leftBase, prefix, token, date)
	if err != nil {
		comp.Error = fmt.Errorf("left: %w", err)
		return comp
	}
	right, err := fetch(client, rightBase, prefix, token, date)
	if err != nil {
		comp.Error = fmt.Errorf("right: %w", err)
		return comp
	}
	comp.LeftCount = len(left)
	comp.RightCount = len(right)
	comp.Differences = diff(left, right)
	return comp
}

func fetch(client *http.Client, base, prefix, token, date string) ([]models.Assignment, error) {
	url := strings.TrimRight(base, "/") + prefix + "/substitutions/" + date
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		if env.Error != nil {
			return nil, fmt.Errorf("%s: %d %s", url, resp.StatusCode, env.Error.Message)
		}
		return nil, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return env.Data.Assignments, nil
}

// diff compares assignments by (period, class). Timestamps are ignored.
func diff(left, right []models.Assignment) []difference {
	index := func(list []models.Assignment) map[models.AssignmentKey]string {
		out := make(map[models.AssignmentKey]string, len(list))
		for _, a := range list {
			out[a.SlotKey()] = a.Substitute
		}
		return out
	}
	l, r := index(left), index(right)

	var out []difference
	for key, sub := range l {
		if other, ok := r[key]; !ok || !strings.EqualFold(other, sub) {
			out = append(out, difference{Key: key, Left: sub, Right: other})
		}
	}
	for key, sub := range r {
		if _, ok := l[key]; !ok {
			out = append(out, difference{Key: key, Right: sub})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Period == out[j].Key.Period {
			return out[i].Key.ClassName < out[j].Key.ClassName
		}
		return out[i].Key.Period < out[j].Key.Period
	})
	return out
}

func printReport(comp comparison) {
	status := "OK"
	switch {
	case comp.Error != nil:
		status = "ERROR"
	case len(comp.Differences) > 0:
		status = "DIFF"
	}
	fmt.Printf("[%s] %s (left %d, right %d)\n", status, comp.Date, comp.LeftCount, comp.RightCount)
	if comp.Error != nil {
		fmt.Printf("  Error: %v\n", comp.Error)
		return
	}
	for _, d := range comp.Differences {
		fmt.Printf("  period %d %s: %q vs %q\n", d.Key.Period, d.Key.ClassName, orDash(d.Left), orDash(d.Right))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
