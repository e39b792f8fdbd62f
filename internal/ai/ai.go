// Package ai answers seekers' questions about the gig board with Gemini,
// letting the model look up live gigs through a read-only SQL tool.
package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

const (
	DefaultModel = "gemini-1.5-flash"

	sqlToolName = "run_readonly_sql"
	maxToolRows = 50
	// maxToolCalls bounds the function-calling loop for one question.
	maxToolCalls = 5
)

// ErrUnsafeQuery is returned for anything other than a single SELECT over
// public data.
var ErrUnsafeQuery = errors.New("only a single SELECT over public gig data is allowed")

// GigAssistant holds the Gemini client and the read-only connection pool.
type GigAssistant struct {
	client *genai.Client
	db     *sql.DB
	model  string
	logger *slog.Logger
}

// NewGigAssistant creates the Gemini client. dbReadOnly must be a pool whose
// MySQL user only has SELECT rights; the query guard is a second line.
func NewGigAssistant(ctx context.Context, apiKey, model string, dbReadOnly *sql.DB, logger *slog.Logger) (*GigAssistant, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "create Gemini client")
	}
	return &GigAssistant{client: client, db: dbReadOnly, model: model, logger: logger}, nil
}

func (a *GigAssistant) Close() error {
	return a.client.Close()
}

// Ask answers question for a user acting as role. It returns the answer and
// the total tokens the exchange consumed.
func (a *GigAssistant) Ask(ctx context.Context, question, role string) (string, int, error) {
	model := a.client.GenerativeModel(a.model)
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        sqlToolName,
			Description: "Executes a READ-ONLY MySQL SELECT against the gig board to answer questions.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "A single MySQL SELECT statement."},
				},
				Required: []string{"query"},
			},
		}},
	}}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(fmt.Sprintf(`
			You are the BaseGigs assistant helping a %s find work.
			Access: MySQL database through %s.
			Schema: %s
			Rules: SELECT only. Only gigs with status 'open' and deleted_at IS NULL are available.
			Never reveal user emails or other personal data. Be concise.
		`, role, sqlToolName, schemaDefinition))},
	}

	cs := model.StartChat()
	res, err := cs.SendMessage(ctx, genai.Text(question))
	if err != nil {
		return "", 0, errors.Wrap(err, "send question")
	}

	for calls := 0; ; calls++ {
		tokens := 0
		if res.UsageMetadata != nil {
			tokens = int(res.UsageMetadata.TotalTokenCount)
		}
		if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
			return "No response.", tokens, nil
		}

		part := res.Candidates[0].Content.Parts[0]
		call, ok := part.(genai.FunctionCall)
		if !ok {
			return fmt.Sprintf("%v", part), tokens, nil
		}
		if call.Name != sqlToolName {
			return "", tokens, errors.Errorf("unknown function %q", call.Name)
		}
		if calls >= maxToolCalls {
			return "", tokens, errors.New("assistant exceeded its lookup budget")
		}

		query, _ := call.Args["query"].(string)
		a.logger.Info("assistant running SQL", "query", query)
		result, qErr := a.runReadOnlyQuery(ctx, query)
		if qErr != nil {
			result = fmt.Sprintf("SQL Error: %v", qErr)
		}

		res, err = cs.SendMessage(ctx, genai.FunctionResponse{
			Name:     sqlToolName,
			Response: map[string]any{"result": result},
		})
		if err != nil {
			return "", tokens, errors.Wrap(err, "send tool response")
		}
	}
}

func (a *GigAssistant) runReadOnlyQuery(ctx context.Context, query string) (string, error) {
	query, err := CheckReadOnly(query)
	if err != nil {
		return "", err
	}

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	table := []map[string]any{}
	for rows.Next() && len(table) < maxToolRows {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		entry := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				entry[col] = string(b)
			} else {
				entry[col] = values[i]
			}
		}
		table = append(table, entry)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	out, err := json.Marshal(table)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readableTables is everything the assistant may name after FROM or JOIN.
// public_users is a view over users without credentials or contact data.
var readableTables = map[string]bool{
	"gigs":         true,
	"public_users": true,
}

var (
	forbiddenWords = regexp.MustCompile(`(?i)\b(insert|update|delete|replace|drop|alter|create|truncate|rename|grant|revoke|call|lock|unlock|set|handler|load_file|outfile|dumpfile|sleep|benchmark)\b`)
	privateColumns = regexp.MustCompile(`(?i)\b(password_hash|email|is_admin)\b`)
	privateTables  = regexp.MustCompile(`(?i)\b(users|contracts|subscriptions|messages|notifications|applications|webhook_events|information_schema|performance_schema|mysql|sys)\b`)
	tableRef       = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-z0-9_$.]+)`)
	countStar      = regexp.MustCompile(`(?i)\bcount\s*\(\s*\*\s*\)`)
	leadingSelect  = regexp.MustCompile(`(?i)^select\b`)
	sqlComment     = regexp.MustCompile(`--|#|/\*`)
)

// CheckReadOnly accepts exactly one SELECT statement that reads only gigs
// and public_users, naming its columns. COUNT(*) is the one permitted star.
// It returns the statement without a trailing semicolon.
func CheckReadOnly(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	switch {
	case q == "":
		return "", ErrUnsafeQuery
	case strings.ContainsAny(q, ";`"):
		return "", ErrUnsafeQuery
	case sqlComment.MatchString(q):
		return "", ErrUnsafeQuery
	case !leadingSelect.MatchString(q):
		return "", ErrUnsafeQuery
	case forbiddenWords.MatchString(q):
		return "", ErrUnsafeQuery
	case privateColumns.MatchString(q), privateTables.MatchString(q):
		return "", ErrUnsafeQuery
	case strings.Contains(countStar.ReplaceAllString(q, ""), "*"):
		return "", ErrUnsafeQuery
	}
	for _, m := range tableRef.FindAllStringSubmatch(q, -1) {
		if !readableTables[strings.ToLower(m[1])] {
			return "", ErrUnsafeQuery
		}
	}
	return q, nil
}

const schemaDefinition = `
	- gigs (id, client_id, title, slug, category, location, description, requirements, payment_amount, payment_type [fixed, hourly], skills (JSON array), deadline, expires_at, status [open, full, closed, deleted], applicant_count, created_at)
	- public_users (id, role [client, seeker, both], full_name, headline, location, skills (JSON array))
	Name every column; SELECT * is rejected. No other tables are readable.
`
