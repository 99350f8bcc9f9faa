package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"vinted-monitor/fuzzy"
	"vinted-monitor/storage"
	"vinted-monitor/utils"
)

var (
	// ErrInvalidURL is returned for query URLs without a scheme and host.
	ErrInvalidURL = errors.New("services: invalid query url")
	// ErrInvalidNumber is returned when a query number cannot be parsed.
	ErrInvalidNumber = errors.New("services: invalid query number")
)

// droppedParams are volatile catalog URL parameters that would make the
// same search look like a new query.
var droppedParams = []string{"time", "search_id", "disabled_personalization", "page"}

// QueryService manages saved catalog searches.
type QueryService struct {
	store          storage.QueryStore
	expander       *fuzzy.Expander
	enableVariants bool
	logger         *utils.Logger
}

// NewQueryService creates a QueryService. A nil expander uses the default
// variant cap.
func NewQueryService(store storage.QueryStore, expander *fuzzy.Expander, enableVariants bool, logger *utils.Logger) *QueryService {
	if expander == nil {
		expander = fuzzy.NewExpander(fuzzy.MaxVariants)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &QueryService{
		store:          store,
		expander:       expander,
		enableVariants: enableVariants,
		logger:         logger,
	}
}

// ProcessQuery canonicalises a catalog URL and saves it, along with one URL
// per spelling variant of its search text. It returns the chat reply and
// whether anything was added.
func (s *QueryService) ProcessQuery(ctx context.Context, rawURL, name string) (string, bool, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "Invalid URL.", false, ErrInvalidURL
	}

	params := u.Query()
	params.Set("order", "newest_first")
	for _, key := range droppedParams {
		params.Del(key)
	}

	base := params.Get("search_text")
	display := strings.TrimSpace(name)
	if display == "" {
		display = base
	}
	storedName, _ := fuzzy.EncodeQueryName(display, base)

	var candidates []string
	switch {
	case base != "" && s.enableVariants:
		variants := s.expander.Expand(base)
		s.logger.Info("[queries] Expanded search_text '%s' into %d variant(s)", base, len(variants))
		for _, v := range variants {
			p := cloneValues(params)
			p.Set("search_text", v)
			candidates = append(candidates, buildURL(u, p))
		}
	default:
		if base != "" {
			s.logger.Info("[queries] Search text variants disabled; using base search_text '%s' only", base)
		}
		candidates = append(candidates, buildURL(u, params))
	}

	added := 0
	for _, candidate := range candidates {
		exists, err := s.store.QueryExists(ctx, candidate)
		if err != nil {
			return "", false, fmt.Errorf("services: process query: %w", err)
		}
		if exists {
			continue
		}
		if _, err := s.store.AddQuery(ctx, candidate, storedName); err != nil {
			return "", false, fmt.Errorf("services: process query: %w", err)
		}
		added++
	}

	switch {
	case added == 0:
		return "Query already exists.", false, nil
	case len(candidates) == 1:
		return "Query added.", true, nil
	default:
		return fmt.Sprintf("Added %d queries (%d variants considered).", added, len(candidates)), true, nil
	}
}

// ListQueries returns the saved queries as numbered lines.
func (s *QueryService) ListQueries(ctx context.Context) (string, error) {
	queries, err := s.store.ListQueries(ctx)
	if err != nil {
		return "", fmt.Errorf("services: list queries: %w", err)
	}

	lines := make([]string, 0, len(queries))
	for i, q := range queries {
		entry, _ := fuzzy.DecodeQueryName(q.StoredName)
		if entry == "" {
			if u, err := url.Parse(q.URL); err == nil {
				entry = u.Query().Get("search_text")
			}
		}
		if entry == "" {
			entry = q.URL
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, entry))
	}
	return strings.Join(lines, "\n"), nil
}

// RemoveQuery deletes the query at the given 1-based list position, or every
// query for "all".
func (s *QueryService) RemoveQuery(ctx context.Context, number string) (string, error) {
	number = strings.TrimSpace(number)
	if number == "all" {
		if err := s.store.RemoveAllQueries(ctx); err != nil {
			return "", fmt.Errorf("services: remove all queries: %w", err)
		}
		return "All queries removed.", nil
	}

	pos, err := strconv.Atoi(number)
	if err != nil || pos < 1 {
		return "Invalid number.", ErrInvalidNumber
	}

	queries, err := s.store.ListQueries(ctx)
	if err != nil {
		return "", fmt.Errorf("services: remove query: %w", err)
	}
	if pos > len(queries) {
		return "Query not found.", storage.ErrNotFound
	}

	if err := s.store.RemoveQuery(ctx, queries[pos-1].ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "Query not found.", err
		}
		return "", fmt.Errorf("services: remove query: %w", err)
	}
	return "Query removed.", nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func buildURL(u *url.URL, params url.Values) string {
	out := *u
	out.RawQuery = params.Encode()
	return out.String()
}
