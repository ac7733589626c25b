package mail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomessage "github.com/emersion/go-message/mail"

	"maildigest/internal/config"
	"maildigest/internal/domain"
	"maildigest/internal/ports"
)

// IMAPSource fetches mailbox messages for a time window. A connection is
// opened, used, and logged out within a single Fetch call; there is no
// pooling or reuse across operations.
type IMAPSource struct {
	cfg    config.MailboxConfig
	logger *slog.Logger
}

var _ ports.MailSource = (*IMAPSource)(nil)

// NewIMAPSource wires mailbox configuration.
func NewIMAPSource(cfg config.MailboxConfig, logger *slog.Logger) *IMAPSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFetch <= 0 {
		cfg.MaxFetch = 50
	}
	return &IMAPSource{cfg: cfg, logger: logger}
}

// Fetch returns INBOX messages received since the window start. IMAP
// SINCE has day granularity; the until bound is applied client-side from
// the parsed Date header where one is available.
func (s *IMAPSource) Fetch(ctx context.Context, since, until time.Time) ([]domain.EmailCandidate, error) {
	if s.cfg.Address == "" || s.cfg.Password == "" {
		return nil, fmt.Errorf("mailbox credentials not configured")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}
	defer func() { _ = c.Logout() }()

	if err := c.Login(s.cfg.Address, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search since %s: %w", since.Format("2006-01-02"), err)
	}
	s.logger.Debug("imap search done", "since", since.Format("2006-01-02"), "messages", len(ids))
	if len(ids) == 0 {
		return nil, nil
	}

	if len(ids) > s.cfg.MaxFetch {
		ids = ids[:s.cfg.MaxFetch]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var candidates []domain.EmailCandidate
	for msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch aborted: %w", err)
		}

		candidate, ok := s.parseMessage(msg, section, until)
		if ok {
			candidates = append(candidates, candidate)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	s.logger.Debug("mail fetched", "candidates", len(candidates))
	return candidates, nil
}

func (s *IMAPSource) parseMessage(msg *imap.Message, section *imap.BodySectionName, until time.Time) (domain.EmailCandidate, bool) {
	body := msg.GetBody(section)
	if body == nil {
		return domain.EmailCandidate{}, false
	}

	reader, err := gomessage.CreateReader(body)
	if err != nil {
		s.logger.Warn("unreadable message", "seq", msg.SeqNum, "error", err)
		return domain.EmailCandidate{}, false
	}

	header := reader.Header
	subject, _ := header.Subject()
	rawDate := header.Get("Date")

	sender := ""
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		sender = from[0].Address
		if from[0].Name != "" {
			sender = fmt.Sprintf("%s <%s>", from[0].Name, from[0].Address)
		}
	}

	if date, err := header.Date(); err == nil && !until.IsZero() && date.After(until) {
		return domain.EmailCandidate{}, false
	}

	return domain.EmailCandidate{
		ID:      fmt.Sprintf("%d", msg.SeqNum),
		Subject: subject,
		Sender:  sender,
		Date:    rawDate,
		Body:    extractBody(reader),
	}, true
}

// extractBody walks the MIME parts preferring text/plain, falling back
// to text/html. The HTML fallback is reduced to text downstream by the
// content cleaner.
func extractBody(reader *gomessage.Reader) string {
	var plain, html string

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*gomessage.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}

		payload, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			plain = string(payload)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(payload)
		}
	}

	if plain != "" {
		return plain
	}
	return html
}
