package models

import "fmt"

// VehicleType is the closed set of slot categories a location can offer.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleJeep       VehicleType = "jeep"
	VehicleTruck      VehicleType = "truck"
	VehicleTwoWheeler VehicleType = "twoWheeler"
	VehicleAuto       VehicleType = "auto"
	VehicleOther      VehicleType = "other"
)

// VehicleTypes lists every category in display order.
var VehicleTypes = []VehicleType{
	VehicleCar,
	VehicleJeep,
	VehicleTruck,
	VehicleTwoWheeler,
	VehicleAuto,
	VehicleOther,
}

func ParseVehicleType(raw string) (VehicleType, error) {
	vt := VehicleType(raw)
	if !vt.Valid() {
		return "", fmt.Errorf("unknown vehicle type %q", raw)
	}
	return vt, nil
}

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleCar, VehicleJeep, VehicleTruck, VehicleTwoWheeler, VehicleAuto, VehicleOther:
		return true
	}
	return false
}

// Label returns the human readable category name.
func (v VehicleType) Label() string {
	switch v {
	case VehicleCar:
		return "Car"
	case VehicleJeep:
		return "Jeep"
	case VehicleTruck:
		return "Truck"
	case VehicleTwoWheeler:
		return "Two-wheeler"
	case VehicleAuto:
		return "Auto"
	case VehicleOther:
		return "Other"
	}
	return string(v)
}

func (v VehicleType) String() string {
	return string(v)
}
