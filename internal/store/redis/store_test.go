package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/store"
	"github.com/MrSnakeDoc/dash/internal/store/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		s, _ := newTestStore(t)
		return s
	})
}

func TestPasswordHashIsPersisted(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	u := &domain.User{Email: "a@example.com", Name: "A", PasswordHash: "$2a$10$hash"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	raw, err := mr.Get(UserKey(u.ID))
	if err != nil {
		t.Fatalf("raw user missing: %v", err)
	}
	if want := `"passwordHash":"$2a$10$hash"`; !strings.Contains(raw, want) {
		t.Errorf("stored user = %s, want it to contain %s", raw, want)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil || got.PasswordHash != "$2a$10$hash" {
		t.Errorf("GetUser() = %+v, %v", got, err)
	}
}

func TestSessionKeyExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	sess := &domain.Session{Token: "tok", UserID: 1, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	ttl := mr.TTL(SessionKey("tok"))
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := s.GetSession(ctx, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetSession() after TTL error = %v, want ErrNotFound", err)
	}
}

func TestIndexesTrackDeletes(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	c := &domain.Credential{UserID: 3, Service: domain.ServiceNotes, Token: "n"}
	if err := s.UpsertCredential(ctx, c); err != nil {
		t.Fatalf("UpsertCredential() error = %v", err)
	}
	if ok, _ := mr.SIsMember(keyAllCredentials, "3:notes"); !ok {
		t.Fatal("credential missing from global index")
	}

	if err := s.DeleteCredential(ctx, 3, domain.ServiceNotes); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if ok, _ := mr.SIsMember(keyAllCredentials, "3:notes"); ok {
		t.Error("credential still in global index")
	}
	if mr.Exists(CredentialKey(3, domain.ServiceNotes)) {
		t.Error("credential record still present")
	}
}

func TestParseCredentialMember(t *testing.T) {
	tests := []struct {
		member  string
		uid     int64
		svc     domain.ServiceType
		wantErr bool
	}{
		{member: "12:task-board", uid: 12, svc: domain.ServiceTaskBoard},
		{member: "7:mail", uid: 7, svc: domain.ServiceMail},
		{member: "nocolon", wantErr: true},
		{member: "x:mail", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			uid, svc, err := parseCredentialMember(tt.member)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCredentialMember() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (uid != tt.uid || svc != tt.svc) {
				t.Errorf("parseCredentialMember() = (%d, %s), want (%d, %s)", uid, svc, tt.uid, tt.svc)
			}
		})
	}
}
