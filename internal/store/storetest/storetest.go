// Package storetest holds the behavior every store.Repository backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/store"
)

// Run exercises a backend. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) store.Repository) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, newRepo(t)) })
	t.Run("DisconnectExpiredCredential", func(t *testing.T) { testDisconnectExpired(t, newRepo(t)) })
	t.Run("WidgetGridRoundTrip", func(t *testing.T) { testWidgetGridRoundTrip(t, newRepo(t)) })
	t.Run("WidgetDefaults", func(t *testing.T) { testWidgetDefaults(t, newRepo(t)) })
	t.Run("WidgetOwnership", func(t *testing.T) { testWidgetOwnership(t, newRepo(t)) })
	t.Run("WidgetReorder", func(t *testing.T) { testWidgetReorder(t, newRepo(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newRepo(t)) })
}

func mustCreateUser(t *testing.T, repo store.Repository, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: "Test", PasswordHash: "hash"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	return u
}

func testUsers(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	a := mustCreateUser(t, repo, "Alice@Example.com ")
	b := mustCreateUser(t, repo, "bob@example.com")
	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Fatalf("ids = %d, %d; want distinct non-zero", a.ID, b.ID)
	}
	if b.ID <= a.ID {
		t.Errorf("ids not increasing: %d then %d", a.ID, b.ID)
	}

	err := repo.CreateUser(ctx, &domain.User{Email: "alice@example.com"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrConflict", err)
	}

	got, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != a.ID || got.PasswordHash != "hash" || got.Email != "alice@example.com" {
		t.Errorf("GetUserByEmail() = %+v", got)
	}

	if _, err := repo.GetUser(ctx, b.ID); err != nil {
		t.Errorf("GetUser() error = %v", err)
	}
	if _, err := repo.GetUser(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetUserByEmail(missing) error = %v, want ErrNotFound", err)
	}
}

func testCredentials(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	u := mustCreateUser(t, repo, "c@example.com")
	other := mustCreateUser(t, repo, "d@example.com")

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	mail := &domain.Credential{UserID: u.ID, Service: domain.ServiceMail, Token: "m", Connected: true}
	board := &domain.Credential{
		UserID: u.ID, Service: domain.ServiceTaskBoard, Token: "t", Connected: true,
		ExpiresAt: &expires,
		Config:    map[string]string{domain.ConfigDefaultListID: "list-1"},
	}
	for _, c := range []*domain.Credential{mail, board, {UserID: other.ID, Service: domain.ServiceNotes, Token: "n"}} {
		if err := repo.UpsertCredential(ctx, c); err != nil {
			t.Fatalf("UpsertCredential() error = %v", err)
		}
	}

	got, err := repo.GetCredential(ctx, u.ID, domain.ServiceTaskBoard)
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if got.Token != "t" || got.ConfigValue(domain.ConfigDefaultListID) != "list-1" {
		t.Errorf("GetCredential() = %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}

	list, err := repo.ListCredentials(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListCredentials() error = %v", err)
	}
	if len(list) != 2 || list[0].Service != domain.ServiceTaskBoard || list[1].Service != domain.ServiceMail {
		t.Errorf("ListCredentials() services = %v", services(list))
	}

	all, err := repo.ListAllCredentials(ctx)
	if err != nil || len(all) != 3 {
		t.Errorf("ListAllCredentials() = %d, %v; want 3", len(all), err)
	}

	// Replace keeps one record per (user, service).
	mail.Token = "m2"
	mail.Connected = false
	if err := repo.UpsertCredential(ctx, mail); err != nil {
		t.Fatalf("UpsertCredential(replace) error = %v", err)
	}
	got, _ = repo.GetCredential(ctx, u.ID, domain.ServiceMail)
	if got == nil || got.Token != "m2" || got.Connected {
		t.Errorf("replaced credential = %+v", got)
	}
	if list, _ := repo.ListCredentials(ctx, u.ID); len(list) != 2 {
		t.Errorf("ListCredentials() after replace = %d, want 2", len(list))
	}

	if err := repo.DeleteCredential(ctx, u.ID, domain.ServiceMail); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if _, err := repo.GetCredential(ctx, u.ID, domain.ServiceMail); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetCredential(deleted) error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteCredential(ctx, u.ID, domain.ServiceMail); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteCredential(missing) error = %v, want ErrNotFound", err)
	}
}

func testDisconnectExpired(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	u := mustCreateUser(t, repo, "sweep@example.com")

	now := time.Now().UTC().Truncate(time.Second)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	creds := []*domain.Credential{
		{UserID: u.ID, Service: domain.ServiceTaskBoard, Token: "t", Connected: true, ExpiresAt: &past},
		{UserID: u.ID, Service: domain.ServiceNotes, Token: "n", Connected: true, ExpiresAt: &future},
		{UserID: u.ID, Service: domain.ServiceMail, Token: "m", Connected: false, ExpiresAt: &past},
	}
	for _, c := range creds {
		if err := repo.UpsertCredential(ctx, c); err != nil {
			t.Fatalf("UpsertCredential() error = %v", err)
		}
	}

	tests := []struct {
		name        string
		service     domain.ServiceType
		wantChanged bool
	}{
		{name: "expired and connected", service: domain.ServiceTaskBoard, wantChanged: true},
		{name: "second call is a no-op", service: domain.ServiceTaskBoard, wantChanged: false},
		{name: "not yet expired", service: domain.ServiceNotes, wantChanged: false},
		{name: "already disconnected", service: domain.ServiceMail, wantChanged: false},
	}
	for _, tt := range tests {
		changed, err := repo.DisconnectExpiredCredential(ctx, u.ID, tt.service, now)
		if err != nil {
			t.Fatalf("%s: DisconnectExpiredCredential() error = %v", tt.name, err)
		}
		if changed != tt.wantChanged {
			t.Errorf("%s: changed = %v, want %v", tt.name, changed, tt.wantChanged)
		}
	}

	got, err := repo.GetCredential(ctx, u.ID, domain.ServiceTaskBoard)
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if got.Connected || got.Token != "t" {
		t.Errorf("disconnected credential = %+v, want token kept and not connected", got)
	}
	if got, _ := repo.GetCredential(ctx, u.ID, domain.ServiceNotes); got == nil || !got.Connected {
		t.Errorf("live credential = %+v, want connected", got)
	}

	// A refresh after the listing wins over the sweep.
	if err := repo.UpsertCredential(ctx, &domain.Credential{UserID: u.ID, Service: domain.ServiceTaskBoard, Token: "t2", Connected: true, ExpiresAt: &future}); err != nil {
		t.Fatalf("UpsertCredential(refresh) error = %v", err)
	}
	if changed, err := repo.DisconnectExpiredCredential(ctx, u.ID, domain.ServiceTaskBoard, now); err != nil || changed {
		t.Errorf("DisconnectExpiredCredential(refreshed) = %v, %v; want false, nil", changed, err)
	}

	if changed, err := repo.DisconnectExpiredCredential(ctx, u.ID+1000, domain.ServiceMail, now); err != nil || changed {
		t.Errorf("DisconnectExpiredCredential(missing) = %v, %v; want false, nil", changed, err)
	}
}

func services(cs []*domain.Credential) []domain.ServiceType {
	out := make([]domain.ServiceType, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Service)
	}
	return out
}

func testWidgetGridRoundTrip(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	u := mustCreateUser(t, repo, "w@example.com")

	grids := []domain.GridRect{
		{X: 0, Y: 0, W: 1, H: 1},
		{X: 3, Y: 2, W: 4, H: 2},
		{X: 11, Y: 40, W: 12, H: 9},
	}
	for _, g := range grids {
		w := &domain.Widget{UserID: u.ID, Type: "tasks-due", Name: "Due", Grid: g, Config: map[string]any{"days": float64(7)}}
		if err := repo.CreateWidget(ctx, w); err != nil {
			t.Fatalf("CreateWidget() error = %v", err)
		}

		got, err := repo.GetWidget(ctx, u.ID, w.ID)
		if err != nil {
			t.Fatalf("GetWidget() error = %v", err)
		}
		if got.Grid != g {
			t.Errorf("Grid = %+v, want %+v", got.Grid, g)
		}
		if got.Config["days"] != float64(7) {
			t.Errorf("Config = %v", got.Config)
		}
	}
}

func testWidgetDefaults(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	u := mustCreateUser(t, repo, "def@example.com")

	first := &domain.Widget{UserID: u.ID, Type: "mail-unread", Name: "Inbox", Position: -1}
	if err := repo.CreateWidget(ctx, first); err != nil {
		t.Fatalf("CreateWidget() error = %v", err)
	}
	second := &domain.Widget{UserID: u.ID, Type: "notes-recent", Name: "Notes", Position: -1, Grid: domain.GridRect{X: -2, W: 0, H: 3}}
	if err := repo.CreateWidget(ctx, second); err != nil {
		t.Fatalf("CreateWidget() error = %v", err)
	}

	got, err := repo.GetWidget(ctx, u.ID, first.ID)
	if err != nil {
		t.Fatalf("GetWidget() error = %v", err)
	}
	if got.Grid != domain.DefaultGrid() {
		t.Errorf("Grid = %+v, want default", got.Grid)
	}
	if got.Config == nil {
		t.Error("Config = nil, want empty map")
	}
	if got.Position != 0 {
		t.Errorf("first Position = %d, want 0", got.Position)
	}

	got, _ = repo.GetWidget(ctx, u.ID, second.ID)
	if got.Position != 1 {
		t.Errorf("second Position = %d, want 1", got.Position)
	}
	if want := (domain.GridRect{X: 0, Y: 0, W: 1, H: 3}); got.Grid != want {
		t.Errorf("Grid = %+v, want %+v", got.Grid, want)
	}
}

func testWidgetOwnership(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	owner := mustCreateUser(t, repo, "owner@example.com")
	intruder := mustCreateUser(t, repo, "intruder@example.com")

	w := &domain.Widget{UserID: owner.ID, Type: "tasks-due", Name: "Due"}
	if err := repo.CreateWidget(ctx, w); err != nil {
		t.Fatalf("CreateWidget() error = %v", err)
	}

	if _, err := repo.GetWidget(ctx, intruder.ID, w.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetWidget(other user) error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteWidget(ctx, intruder.ID, w.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteWidget(other user) error = %v, want ErrNotFound", err)
	}
	stolen := &domain.Widget{ID: w.ID, UserID: intruder.ID, Type: "x", Name: "x"}
	if err := repo.UpdateWidget(ctx, stolen); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateWidget(other user) error = %v, want ErrNotFound", err)
	}
	if list, _ := repo.ListWidgets(ctx, intruder.ID); len(list) != 0 {
		t.Errorf("ListWidgets(other user) = %d widgets", len(list))
	}

	w.Name = "Renamed"
	w.Grid = domain.GridRect{X: 1, Y: 1, W: 2, H: 2}
	if err := repo.UpdateWidget(ctx, w); err != nil {
		t.Fatalf("UpdateWidget() error = %v", err)
	}
	got, _ := repo.GetWidget(ctx, owner.ID, w.ID)
	if got.Name != "Renamed" || got.Grid != w.Grid {
		t.Errorf("updated widget = %+v", got)
	}

	if err := repo.DeleteWidget(ctx, owner.ID, w.ID); err != nil {
		t.Fatalf("DeleteWidget() error = %v", err)
	}
	if _, err := repo.GetWidget(ctx, owner.ID, w.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetWidget(deleted) error = %v, want ErrNotFound", err)
	}
}

func testWidgetReorder(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	u := mustCreateUser(t, repo, "order@example.com")

	ids := make([]int64, 0, 4)
	for i := 0; i < 4; i++ {
		w := &domain.Widget{UserID: u.ID, Type: "t", Name: "w", Position: -1}
		if err := repo.CreateWidget(ctx, w); err != nil {
			t.Fatalf("CreateWidget() error = %v", err)
		}
		ids = append(ids, w.ID)
	}

	// Name two; the other two follow in their previous order.
	if err := repo.ReorderWidgets(ctx, u.ID, []int64{ids[3], ids[1]}); err != nil {
		t.Fatalf("ReorderWidgets() error = %v", err)
	}

	list, err := repo.ListWidgets(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListWidgets() error = %v", err)
	}
	want := []int64{ids[3], ids[1], ids[0], ids[2]}
	if len(list) != len(want) {
		t.Fatalf("ListWidgets() = %d widgets, want %d", len(list), len(want))
	}
	for i, w := range list {
		if w.ID != want[i] || w.Position != i {
			t.Errorf("list[%d] = (id %d, pos %d), want (id %d, pos %d)", i, w.ID, w.Position, want[i], i)
		}
	}

	var verr *domain.ValidationError
	if err := repo.ReorderWidgets(ctx, u.ID, []int64{ids[0], 424242}); !errors.As(err, &verr) {
		t.Errorf("ReorderWidgets(unknown id) error = %v, want ValidationError", err)
	}
	if err := repo.ReorderWidgets(ctx, u.ID, []int64{ids[0], ids[0]}); !errors.As(err, &verr) {
		t.Errorf("ReorderWidgets(duplicate) error = %v, want ValidationError", err)
	}
}

func testSessions(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	u := mustCreateUser(t, repo, "s@example.com")
	now := time.Now()

	live := &domain.Session{Token: "live-token", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := repo.CreateSession(ctx, live); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	got, err := repo.GetSession(ctx, "live-token")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", got.UserID, u.ID)
	}

	stale := &domain.Session{Token: "stale-token", UserID: u.ID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := repo.CreateSession(ctx, stale); err != nil {
		t.Fatalf("CreateSession(stale) error = %v", err)
	}
	if _, err := repo.GetSession(ctx, "stale-token"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetSession(expired) error = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteSession(ctx, "live-token"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := repo.GetSession(ctx, "live-token"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetSession(deleted) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetSession(ctx, "never"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetSession(unknown) error = %v, want ErrNotFound", err)
	}
}
