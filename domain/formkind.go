package domain

type FormKind string

const (
	FormKindItemRequest    FormKind = "item_request"
	FormKindVehicleRequest FormKind = "vehicle_request"
)

func (k FormKind) IsValid() bool {
	return k == FormKindItemRequest || k == FormKindVehicleRequest
}

// RequestTable the table holding request rows of this kind.
// The two request kinds evolved independently and keep separate tables,
// but share the RequestRecord shape.
func (k FormKind) RequestTable() string {
	switch k {
	case FormKindItemRequest:
		return "item_requests"
	case FormKindVehicleRequest:
		return "vehicle_requests"
	}
	return ""
}
