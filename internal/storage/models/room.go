package models

// Room is a room of an apartment.
type Room struct {
	ID          int64  `json:"id"`
	ApartmentID int64  `json:"apartment_id"`
	RoomTypeID  int64  `json:"room_type_id"`
	Name        string `json:"name"`
	Beds        []Bed  `json:"beds,omitempty"`
}

// Bed is a single bed placed in a room.
type Bed struct {
	ID        int64 `json:"id"`
	RoomID    int64 `json:"room_id"`
	BedTypeID int64 `json:"bed_type_id"`
}

// BedType names a kind of bed (e.g. "Single bed").
type BedType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BedTypeRef is the projection used to summarize an apartment's beds:
// one entry per bed, in room then bed order.
type BedTypeRef struct {
	BedTypeID int64
	Name      string
}
