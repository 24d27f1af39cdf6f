package models

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

func (g Guest) GetId() int {
	return g.ID
}

// GetDefault stands in for a guest that no longer resolves.
func (g Guest) GetDefault(id int) Data {
	return Guest{
		ID:        id,
		GuestName: "-",
	}
}

func (u User) GetId() int {
	return u.ID
}

func (u User) GetDefault(id int) Data {
	return User{
		ID:       id,
		Username: "-",
	}
}

func (v Vendor) GetId() int {
	return v.ID
}

func (v Vendor) GetDefault(id int) Data {
	return Vendor{
		ID:   id,
		Name: "-",
	}
}
