package handlers

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
)

// userConnector builds the connector for one of the user's connected services.
func userConnector(ctx context.Context, d deps.Deps, userID int64, st domain.ServiceType) (connector.Connector, *domain.Credential, error) {
	cred, err := d.Store.GetCredential(ctx, userID, st)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, &NotConnectedError{Service: st}
		}
		return nil, nil, err
	}
	if !cred.Connected || !cred.HasToken() || cred.Expired(d.Now()) {
		return nil, nil, &NotConnectedError{Service: st}
	}

	c, err := d.Connectors(string(st), cred.Token)
	if err != nil {
		return nil, nil, err
	}
	return c, cred, nil
}

func taskBoardFor(ctx context.Context, d deps.Deps, userID int64) (connector.TaskBoard, *domain.Credential, error) {
	c, cred, err := userConnector(ctx, d, userID, domain.ServiceTaskBoard)
	if err != nil {
		return nil, nil, err
	}
	tb, ok := connector.AsTaskBoard(c)
	if !ok {
		return nil, nil, &connector.UnsupportedServiceTypeError{Tag: string(domain.ServiceTaskBoard)}
	}
	return tb, cred, nil
}

func notesFor(ctx context.Context, d deps.Deps, userID int64) (connector.Notes, error) {
	c, _, err := userConnector(ctx, d, userID, domain.ServiceNotes)
	if err != nil {
		return nil, err
	}
	n, ok := connector.AsNotes(c)
	if !ok {
		return nil, &connector.UnsupportedServiceTypeError{Tag: string(domain.ServiceNotes)}
	}
	return n, nil
}

func mailFor(ctx context.Context, d deps.Deps, userID int64) (connector.Mail, *domain.Credential, error) {
	c, cred, err := userConnector(ctx, d, userID, domain.ServiceMail)
	if err != nil {
		return nil, nil, err
	}
	m, ok := connector.AsMail(c)
	if !ok {
		return nil, nil, &connector.UnsupportedServiceTypeError{Tag: string(domain.ServiceMail)}
	}
	return m, cred, nil
}
