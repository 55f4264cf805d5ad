package domain

import "time"

// UserSnapshot is the cached projection of the server's /api/user/me payload.
//
// A snapshot is owned by the session coordinator. Callers receive copies
// and request changes through the API, never by editing the struct.
type UserSnapshot struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Hp           int       `json:"hp"`
	CurrentHp    int       `json:"currentHp"`
	Attack       int       `json:"attack"`
	Defense      int       `json:"defense"`
	Level        int       `json:"level"`
	Gold         int       `json:"gold"`
	Exp          int       `json:"exp"`
	FreeStats    int       `json:"freeStats"`
	CreatedAt    time.Time `json:"createdAt"`
	Avatar       *Avatar   `json:"avatar,omitempty"`
	LocationSlug *string   `json:"locationSlug,omitempty"`
	InFight      *bool     `json:"inFight,omitempty"`
}

// Avatar is the player's portrait reference.
type Avatar struct {
	ID      string `json:"id"`
	Image   string `json:"image"`
	Private bool   `json:"private"`
}

// Clone returns a deep copy of the snapshot. A nil receiver yields nil.
func (u *UserSnapshot) Clone() *UserSnapshot {
	if u == nil {
		return nil
	}
	c := *u
	if u.Avatar != nil {
		a := *u.Avatar
		c.Avatar = &a
	}
	if u.LocationSlug != nil {
		s := *u.LocationSlug
		c.LocationSlug = &s
	}
	if u.InFight != nil {
		f := *u.InFight
		c.InFight = &f
	}
	return &c
}

// WithHP returns a copy with the HP fields present in upd applied.
// Every other field is carried over unchanged.
func (u *UserSnapshot) WithHP(upd HPUpdate) *UserSnapshot {
	c := u.Clone()
	if c == nil {
		return nil
	}
	if upd.CurrentHp != nil {
		c.CurrentHp = *upd.CurrentHp
	}
	if upd.Hp != nil {
		c.Hp = *upd.Hp
	}
	return c
}
