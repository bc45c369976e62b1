package servicetest

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
)

var (
	_ service.UserStore     = (*Users)(nil)
	_ service.IncidentStore = (*Incidents)(nil)
	_ service.CommentStore  = (*Comments)(nil)
	_ service.MediaStore    = (*Media)(nil)
	_ service.FileStore     = (*Files)(nil)
	_ service.Notifier      = (*Outbox)(nil)
)

// Env wires the services against in-memory collaborators.
type Env struct {
	DB        *DB
	Outbox    *Outbox
	Files     *Files
	Tokens    *auth.TokenService
	Accounts  *service.AccountService
	Incidents *service.IncidentService
	Ledger    *service.LedgerService
}

// New builds an Env with a fast bcrypt cost and a fixed test secret.
func New(t testing.TB) *Env {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte("servicetest-secret"),
		Issuer:     "servicetest",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		ResetTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	creds, err := auth.NewCredentials(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	db := NewDB()
	outbox := &Outbox{}
	files := NewFiles()
	users := db.Users()
	return &Env{
		DB:        db,
		Outbox:    outbox,
		Files:     files,
		Tokens:    tokens,
		Accounts:  service.NewAccountService(users, creds, tokens, outbox, "http://civic.test", nil),
		Incidents: service.NewIncidentService(db.Incidents(), db.Comments(), db.Media(), users, files, outbox, nil),
		Ledger:    service.NewLedgerService(users, nil),
	}
}
