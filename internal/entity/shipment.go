package entity

import "time"

// ShipmentRecord is read-only TMS reference data. Nil dates are unknown.
type ShipmentRecord struct {
	LDNumber           string     `json:"ld_num"`
	SONumber           string     `json:"so_num"`
	ShipmentNumber     string     `json:"shipment_number"`
	ChassisNumber      string     `json:"chassis_number"`
	ContainerNumber    string     `json:"container_number"`
	PickupActualDate   *time.Time `json:"pickup_actual_date,omitempty"`
	DeliveryActualDate *time.Time `json:"delivery_actual_date,omitempty"`
	CarrierName        string     `json:"carrier_name"`
	CustomerName       string     `json:"customer_name"`
}
