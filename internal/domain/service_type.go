package domain

import "strings"

// ServiceType identifies one of the third-party productivity services
// a user can connect to the dashboard.
type ServiceType string

const (
	ServiceTaskBoard ServiceType = "task-board"
	ServiceNotes     ServiceType = "notes"
	ServiceMail      ServiceType = "mail"
)

// AllServiceTypes returns the supported service types in display order.
func AllServiceTypes() []ServiceType {
	return []ServiceType{ServiceTaskBoard, ServiceNotes, ServiceMail}
}

// serviceAliases maps lowercased tags (canonical names and vendor names) to a service type.
var serviceAliases = map[string]ServiceType{
	"task-board": ServiceTaskBoard,
	"taskboard":  ServiceTaskBoard,
	"task_board": ServiceTaskBoard,
	"trello":     ServiceTaskBoard,
	"notes":      ServiceNotes,
	"notion":     ServiceNotes,
	"mail":       ServiceMail,
	"gmail":      ServiceMail,
}

// ParseServiceType matches tag case-insensitively against the supported services.
func ParseServiceType(tag string) (ServiceType, bool) {
	st, ok := serviceAliases[strings.ToLower(strings.TrimSpace(tag))]
	return st, ok
}

func (s ServiceType) String() string { return string(s) }
