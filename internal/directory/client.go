// Package directory resolves notification recipients, from the corporate
// directory when it is enabled and from local access control otherwise.
package directory

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// QueryKind selects the directory subtree to search.
type QueryKind int

const (
	KindUser QueryKind = iota
	KindGroup
)

func (k QueryKind) String() string {
	if k == KindGroup {
		return "group"
	}
	return "user"
}

// accountDisabled is the ACCOUNTDISABLE bit of userAccountControl.
const accountDisabled = 0x2

type Entry struct {
	CommonName     string
	Mail           string
	AccountControl int
	// Kind is the subtree the entry was found in.
	Kind QueryKind
}

// Enabled reports whether the account may log in. Entries without
// userAccountControl count as enabled.
func (e Entry) Enabled() bool {
	return e.AccountControl&accountDisabled == 0
}

// Client searches the directory for entries whose cn equals query.
type Client interface {
	Search(ctx context.Context, query string, kind QueryKind) ([]Entry, error)
}

type LDAPConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	UserBase     string
	GroupBase    string
	Timeout      time.Duration
}

// LDAPClient opens one connection per search.
type LDAPClient struct {
	cfg LDAPConfig
}

func NewLDAPClient(cfg LDAPConfig) *LDAPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &LDAPClient{cfg: cfg}
}

func (c *LDAPClient) base(kind QueryKind) string {
	if kind == KindGroup {
		return c.cfg.GroupBase
	}
	return c.cfg.UserBase
}

func (c *LDAPClient) Search(ctx context.Context, query string, kind QueryKind) ([]Entry, error) {
	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := ldap.DialURL(c.cfg.URL, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()
	conn.SetTimeout(c.cfg.Timeout)

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < c.cfg.Timeout {
		conn.SetTimeout(time.Until(deadline))
	}

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("bind: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		c.base(kind),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(c.cfg.Timeout/time.Second),
		false,
		fmt.Sprintf("(cn=%s)", ldap.EscapeFilter(query)),
		[]string{"cn", "mail", "userAccountControl"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %s %q: %w", kind, query, err)
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		entry := Entry{
			CommonName: e.GetAttributeValue("cn"),
			Mail:       e.GetAttributeValue("mail"),
			Kind:       kind,
		}
		if raw := e.GetAttributeValue("userAccountControl"); raw != "" {
			if uac, err := strconv.Atoi(raw); err == nil {
				entry.AccountControl = uac
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
