package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Service 外部身份服务类型
type Service string

const (
	ServiceTelegram Service = "telegram"
	ServiceTwitter  Service = "twitter"
	ServiceDiscord  Service = "discord"
	ServiceGitHub   Service = "github"
)

func ParseService(s string) (Service, error) {
	switch Service(strings.ToLower(s)) {
	case ServiceTelegram:
		return ServiceTelegram, nil
	case ServiceTwitter:
		return ServiceTwitter, nil
	case ServiceDiscord:
		return ServiceDiscord, nil
	case ServiceGitHub:
		return ServiceGitHub, nil
	}
	return "", fmt.Errorf("%w: unknown service %q", ErrInvalidArgument, s)
}

// ServiceAccount is an external identity. Telegram accounts carry a numeric
// ID, every other service carries a handle. Zero values mean "absent".
type ServiceAccount struct {
	Service Service `json:"service"`
	ID      uint64  `json:"id,omitempty"`
	Handle  string  `json:"handle,omitempty"`
}

func TelegramAccount(id uint64) ServiceAccount {
	return ServiceAccount{Service: ServiceTelegram, ID: id}
}

func HandleAccount(service Service, handle string) ServiceAccount {
	return ServiceAccount{Service: service, Handle: handle}
}

// Verify checks that exactly the field matching the service kind is populated.
func (a ServiceAccount) Verify() error {
	switch a.Service {
	case ServiceTelegram:
		if a.ID == 0 || a.Handle != "" {
			return fmt.Errorf("%w: telegram account needs a numeric id only", ErrInvalidArgument)
		}
	case ServiceTwitter, ServiceDiscord, ServiceGitHub:
		if a.Handle == "" || a.ID != 0 {
			return fmt.Errorf("%w: %s account needs a handle only", ErrInvalidArgument, a.Service)
		}
	default:
		return fmt.Errorf("%w: unknown service %q", ErrInvalidArgument, a.Service)
	}
	return nil
}

// Key 返回持久化和事件中使用的字符串形式，例如 "telegram:42"、"twitter:alice"
func (a ServiceAccount) Key() string {
	if a.Service == ServiceTelegram {
		return string(a.Service) + ":" + strconv.FormatUint(a.ID, 10)
	}
	return string(a.Service) + ":" + a.Handle
}

func (a ServiceAccount) String() string {
	return a.Key()
}

// ParseServiceAccount builds a verified account from a service name and the
// numeric id (telegram) or handle (others).
func ParseServiceAccount(service, value string) (ServiceAccount, error) {
	svc, err := ParseService(service)
	if err != nil {
		return ServiceAccount{}, err
	}
	var acc ServiceAccount
	if svc == ServiceTelegram {
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return ServiceAccount{}, fmt.Errorf("%w: telegram id %q", ErrInvalidArgument, value)
		}
		acc = TelegramAccount(id)
	} else {
		acc = HandleAccount(svc, value)
	}
	return acc, acc.Verify()
}

// ParseServiceAccountKey is the inverse of Key.
func ParseServiceAccountKey(key string) (ServiceAccount, error) {
	service, value, ok := strings.Cut(key, ":")
	if !ok {
		return ServiceAccount{}, fmt.Errorf("%w: service account key %q", ErrInvalidArgument, key)
	}
	return ParseServiceAccount(service, value)
}

// SameIdentity compares two service accounts: telegram accounts by numeric
// id, other services by kind and handle.
func SameIdentity(a, b ServiceAccount) bool {
	if a.Service == ServiceTelegram || b.Service == ServiceTelegram {
		return a.Service == b.Service && a.ID != 0 && a.ID == b.ID
	}
	return a.Service == b.Service && a.Handle != "" && a.Handle == b.Handle
}
