package scouts

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"autogov/internal/agent"
	"autogov/internal/cabinet"
	"autogov/internal/config"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// Tracker is the slice of the tracker client the scouts need.
type Tracker interface {
	ListOpenIssues(ctx context.Context, labels ...string) ([]tracker.Issue, error)
	ListClosedIssues(ctx context.Context, limit int, labels ...string) ([]tracker.Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (int, error)
}

// NewsScout discovers fresh decisions once per day and files one
// analysis issue per decision, deduplicated by decision id.
type NewsScout struct {
	invoker agent.Invoker
	prompts *agent.PromptStore
	tracker Tracker
	paths   config.PathsConfig
	perDay  int
}

// NewNewsScout wires the scout. perDay bounds issues created per run.
func NewNewsScout(invoker agent.Invoker, prompts *agent.PromptStore, tr Tracker, paths config.PathsConfig, perDay int) *NewsScout {
	if perDay < 1 {
		perDay = 3
	}
	return &NewsScout{invoker: invoker, prompts: prompts, tracker: tr, paths: paths, perDay: perDay}
}

// Due reports whether the scout has not yet run on now's calendar day.
func (s *NewsScout) Due(now time.Time) bool {
	var state newsState
	loadState(s.paths.NewsStatePath(), &state)
	return state.LastDate != now.UTC().Format("2006-01-02")
}

type newsItem struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	FullText  string   `json:"full_text"`
	Date      string   `json:"date"`
	SourceURL string   `json:"source_url"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
}

type newsPayload struct {
	Decisions []newsItem `json:"decisions"`
}

// Run spawns the news scout agent and files one backlog analysis issue
// per new decision. Returns the created issue numbers. The daily state
// is advanced only when at least one decision parsed, so an empty day
// can be retried.
func (s *NewsScout) Run(ctx context.Context, now time.Time) ([]int, error) {
	today := now.UTC().Format("2006-01-02")

	res, err := s.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleNewsScout,
		SystemPrompt: s.prompts.ForRole(agent.RoleNewsScout),
		UserPrompt:   newsPrompt(today, s.perDay),
	})
	if err != nil {
		return nil, fmt.Errorf("news scout: %w", err)
	}

	var payload newsPayload
	if err := agent.Decode(agent.RoleNewsScout, res.Text, &payload); err != nil {
		return nil, fmt.Errorf("news scout: %w", err)
	}

	decisions := s.collect(payload.Decisions, today)
	if len(decisions) == 0 {
		logging.Scouts("news scout found nothing for %s", today)
		return nil, nil
	}

	var created []int
	for _, d := range decisions {
		num, err := s.fileDecision(ctx, d)
		if tracker.KindOf(err) == tracker.KindDuplicate {
			logging.ScoutsDebug("decision %s already tracked, skipping", d.ID)
			continue
		}
		if err != nil {
			return created, err
		}
		logging.Scouts("filed analysis issue #%d for decision %s", num, d.ID)
		created = append(created, num)
	}

	if err := saveState(s.paths.NewsStatePath(), newsState{LastDate: today}); err != nil {
		logging.Scouts("news state save failed: %v", err)
	}
	return created, nil
}

// collect validates raw items into decisions, capped at perDay. Invalid
// items are skipped, never fatal; intake takes what it can get.
func (s *NewsScout) collect(items []newsItem, today string) []*cabinet.Decision {
	var out []*cabinet.Decision
	for _, item := range items {
		if len(out) >= s.perDay {
			break
		}
		date := item.Date
		if date == "" {
			date = today
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			logging.Scouts("skipping news item %q: bad date %q", item.Title, item.Date)
			continue
		}
		cat := cabinet.Category(item.Category)
		if !cat.Valid() {
			cat = cabinet.CategoryGeneral
		}
		d := &cabinet.Decision{
			ID:        cabinet.DeriveDecisionID(date, item.Title),
			Title:     item.Title,
			Summary:   item.Summary,
			FullText:  item.FullText,
			Date:      date,
			SourceURL: item.SourceURL,
			Category:  cat,
			Tags:      item.Tags,
		}
		if err := d.Validate(); err != nil {
			logging.Scouts("skipping news item: %v", err)
			continue
		}
		out = append(out, d)
	}
	return out
}

// fileDecision creates the backlog analysis issue for one decision. An
// id that is already tracked comes back as a KindDuplicate error.
func (s *NewsScout) fileDecision(ctx context.Context, d *cabinet.Decision) (int, error) {
	tracked, err := s.alreadyTracked(ctx, d.ID)
	if err != nil {
		return 0, err
	}
	if tracked {
		return 0, &tracker.Error{Op: "intake", Kind: tracker.KindDuplicate,
			Err: fmt.Errorf("decision %s already has an issue", d.ID)}
	}
	body, err := AnalysisIssueBody(d)
	if err != nil {
		return 0, err
	}
	num, err := s.tracker.CreateIssue(ctx, AnalysisIssueTitle(d), body,
		[]string{tracker.LabelBacklog, tracker.LabelTaskAnalysis})
	if err != nil {
		return 0, fmt.Errorf("file analysis issue for %s: %w", d.ID, err)
	}
	return num, nil
}

// alreadyTracked reports whether the decision id has an analysis result
// on disk or an analysis issue, open or recently closed, that mentions
// it.
func (s *NewsScout) alreadyTracked(ctx context.Context, id string) (bool, error) {
	if _, err := os.Stat(s.paths.AnalysisPath(id)); err == nil {
		return true, nil
	}

	open, err := s.tracker.ListOpenIssues(ctx, tracker.LabelTaskAnalysis)
	if err != nil {
		return false, fmt.Errorf("dedup scan: %w", err)
	}
	for i := range open {
		if strings.Contains(open[i].Body, id) {
			return true, nil
		}
	}

	closed, err := s.tracker.ListClosedIssues(ctx, 50, tracker.LabelTaskAnalysis)
	if err != nil {
		return false, fmt.Errorf("dedup scan: %w", err)
	}
	for i := range closed {
		if strings.Contains(closed[i].Body, id) {
			return true, nil
		}
	}
	return false, nil
}

func newsPrompt(today string, limit int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search for government decisions announced on or around %s.\n\n", today))
	sb.WriteString(fmt.Sprintf("Report the %d most significant decisions. Respond with a JSON object only:\n\n", limit))
	sb.WriteString("{\n")
	sb.WriteString("  \"decisions\": [\n")
	sb.WriteString("    {\n")
	sb.WriteString("      \"title\": \"...\",\n")
	sb.WriteString("      \"summary\": \"...\",\n")
	sb.WriteString("      \"full_text\": \"... (optional)\",\n")
	sb.WriteString(fmt.Sprintf("      \"date\": \"%s\",\n", today))
	sb.WriteString("      \"source_url\": \"https://...\",\n")
	sb.WriteString("      \"category\": \"fiscal|legal|eu|health|security|education|economy|tourism|environment|general\",\n")
	sb.WriteString("      \"tags\": [\"...\"]\n")
	sb.WriteString("    }\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Use an empty decisions array if nothing significant was announced. Dates are YYYY-MM-DD.\n")
	return sb.String()
}
