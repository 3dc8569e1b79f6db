package session

import (
	"ordertrack/internal/domain"
)

const (
	keyToken       = "session/token"
	keyRole        = "session/role"
	keySubject     = "session/subject"
	keyDisplayName = "session/display_name"
)

type KV interface {
	Get(key string) (string, bool, error)
	SetAll(values map[string]string) error
	DeleteAll(keys ...string) error
}

// KVPersister stores the session fields under fixed keys of a process-local
// key-value store.
type KVPersister struct {
	kv KV
}

func NewKVPersister(kv KV) *KVPersister {
	return &KVPersister{kv: kv}
}

func (p *KVPersister) Load() (domain.Session, bool, error) {
	token, ok, err := p.kv.Get(keyToken)
	if err != nil || !ok {
		return domain.Session{}, false, err
	}

	var sess domain.Session
	sess.Token = token
	fields := []struct {
		key string
		dst *string
	}{
		{keySubject, &sess.Subject},
		{keyDisplayName, &sess.DisplayName},
	}
	for _, f := range fields {
		v, _, err := p.kv.Get(f.key)
		if err != nil {
			return domain.Session{}, false, err
		}
		*f.dst = v
	}

	role, _, err := p.kv.Get(keyRole)
	if err != nil {
		return domain.Session{}, false, err
	}
	sess.Role = domain.Role(role)

	return sess, true, nil
}

func (p *KVPersister) Save(sess domain.Session) error {
	return p.kv.SetAll(map[string]string{
		keyToken:       sess.Token,
		keyRole:        string(sess.Role),
		keySubject:     sess.Subject,
		keyDisplayName: sess.DisplayName,
	})
}

func (p *KVPersister) Clear() error {
	return p.kv.DeleteAll(keyToken, keyRole, keySubject, keyDisplayName)
}
