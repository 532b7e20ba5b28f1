package postnl

import (
	"fmt"
	"time"
)

// ShipmentType distinguishes parcels from letterbox parcels.
type ShipmentType string

const (
	ShipmentLetterboxParcel ShipmentType = "LetterboxParcel"
	ShipmentParcel          ShipmentType = "Parcel"
)

// DeliveryStatus is the coarse delivery state of a shipment.
type DeliveryStatus string

const (
	DeliveryDelivered                    DeliveryStatus = "Delivered"
	DeliveryInTransit                    DeliveryStatus = "InTransit"
	DeliveryEnroute                      DeliveryStatus = "Enroute"
	DeliveryEnrouteSpecific              DeliveryStatus = "EnrouteSpecific"
	DeliveryDeliveredAtPickup            DeliveryStatus = "DeliveredAtPickup"
	DeliveryEnrouteWholeDayOrUnspecified DeliveryStatus = "EnrouteWholeDayOrUnspecified"
)

// IsDelivered reports whether the shipment reached the recipient or a pickup point.
func (s DeliveryStatus) IsDelivered() bool {
	return s == DeliveryDelivered || s == DeliveryDeliveredAtPickup
}

// PartyType is the role of an address on a shipment.
type PartyType string

const (
	PartyRecipient PartyType = "Recipient"
	PartyReturn    PartyType = "Return"
	PartySender    PartyType = "Sender"
	PartyRerouted  PartyType = "Rerouted"
)

// LocationType is where a shipment is delivered.
type LocationType string

const (
	LocationRecipient    LocationType = "Recipient"
	LocationServicePoint LocationType = "ServicePoint"
	LocationRerouted     LocationType = "Rerouted"
	LocationPostOffice   LocationType = "PostOffice"
)

// BoxType tells whether a tracked shipment is incoming or outgoing.
type BoxType string

const (
	BoxReceiver BoxType = "Receiver"
	BoxSender   BoxType = "Sender"
)

type TimeFrameType string

const (
	TimeFrameSpecific     TimeFrameType = "Specific"
	TimeFrameUnspecified  TimeFrameType = "Unspecified"
	TimeFrameOnlyFromTime TimeFrameType = "OnlyFromTime"
	TimeFrameWholeDay     TimeFrameType = "WholeDay"
)

type EnrouteType string

const (
	EnrouteStandard  EnrouteType = "Standard"
	EnrouteTentative EnrouteType = "Tentative"
)

// InboxPackage is one entry of the inbox returned by GetPackages.
type InboxPackage struct {
	ShipmentType               ShipmentType           `json:"shipmentType"`
	EffectiveDate              time.Time              `json:"effectiveDate"`
	Key                        string                 `json:"key"`
	Barcode                    string                 `json:"barcode"`
	Country                    string                 `json:"country"`
	PostalCode                 string                 `json:"postalCode"`
	IsInternational            bool                   `json:"isInternational"`
	Product                    InboxProduct           `json:"product"`
	Description                *string                `json:"description"`
	Pickup                     *string                `json:"pickup"`
	Delivery                   InboxDelivery          `json:"delivery"`
	BeforeFirstDeliveryAttempt bool                   `json:"beforeFirstDeliveryAttempt"`
	FirstDeliveryAttemptFailed bool                   `json:"firstDeliveryAttemptFailed"`
	Amounts                    map[string]string      `json:"amounts"`
	Enroute                    *Enroute               `json:"enroute"`
	ExtraInformation           []ExtraInformation     `json:"extraInformation"`
	Sender                     *InboxParty            `json:"sender"`
	Receiver                   *InboxParty            `json:"receiver"`
	OriginalReceiver           *InboxParty            `json:"originalReceiver"`
	Return                     *InboxParty            `json:"return"`
	DeliveryLocation           *InboxDeliveryLocation `json:"deliveryLocation"`
	Dimensions                 InboxDimensions        `json:"dimensions"`
	GeneratedTitles            GeneratedTitles        `json:"generatedTitles"`
	Order                      int                    `json:"order"`
	TrackedShipment            TrackedShipment        `json:"trackedShipment"`
	TripInformation            *string                `json:"tripInformation"`
	AllObservations            []Observation          `json:"allObservations"`
	IsReturnShipment           bool                   `json:"isReturnShipment"`
	PickupRetailBarcode        *string                `json:"pickupRetailBarcode"`
}

// Title returns the description of the package, or the generated title when
// the sender did not provide one. Generated titles are swapped by the portal
// for received packages, so the sender title describes the sender.
func (p *InboxPackage) Title() string {
	if p.Description != nil && *p.Description != "" {
		return *p.Description
	}
	if p.TrackedShipment.Title != nil && *p.TrackedShipment.Title != "" {
		return *p.TrackedShipment.Title
	}
	return p.GeneratedTitles.Sender
}

type InboxProduct struct {
	ProductCode           string `json:"productCode"`
	ProductOption         string `json:"productOption"`
	ProductCharacteristic string `json:"productCharacteristic"`
}

type InboxDelivery struct {
	Barcode                     string         `json:"barcode"`
	Status                      DeliveryStatus `json:"status"`
	FirstDeliveryAttemptExpired bool           `json:"firstDeliveryAttemptExpired"`
}

type InboxParty struct {
	AddressType       PartyType `json:"addressType"`
	CompanyName       *string   `json:"companyName"`
	DepartmentName    *string   `json:"departmentName"`
	LastName          *string   `json:"lastName"`
	MiddleName        *string   `json:"middleName"`
	FirstName         *string   `json:"firstName"`
	Street            string    `json:"street"`
	HouseNumber       string    `json:"houseNumber"`
	HouseNumberSuffix *string   `json:"houseNumberSuffix"`
	Building          *string   `json:"building"`
	PostalCode        string    `json:"postalCode"`
	Town              string    `json:"town"`
	Country           string    `json:"country"`
}

type InboxDeliveryLocation struct {
	LocationType  LocationType   `json:"locationType"`
	PartnerID     string         `json:"partnerId"`
	LocationID    string         `json:"locationId"`
	BLSCode       string         `json:"blsCode"`
	PhoneNumber   string         `json:"phoneNumber"`
	Address       Address        `json:"address"`
	Name          string         `json:"name"`
	ListName      string         `json:"listName"`
	Coordinate    Coordinate     `json:"coordinate"`
	BusinessHours []OpeningHours `json:"businessHours"`
	Distance      uint32         `json:"distance"`
	Services      []string       `json:"services"`
	DeliveryDate  *time.Time     `json:"deliveryDate"`
}

// InboxDimensions are the measured package dimensions in metres.
type InboxDimensions struct {
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Volume float64 `json:"volume"`
}

func (d InboxDimensions) String() string {
	return fmt.Sprintf("%g x %g x %gm", d.Height, d.Width, d.Depth)
}

type GeneratedTitles struct {
	Receiver string `json:"receiver"`
	Sender   string `json:"sender"`
}

type TrackedShipment struct {
	ID          uint32         `json:"id"`
	Barcode     string         `json:"barcode"`
	PostalCode  string         `json:"postalCode"`
	Country     string         `json:"country"`
	Title       *string        `json:"title"`
	ListNameKey string         `json:"listNameKey"`
	Box         BoxType        `json:"box"`
	Status      DeliveryStatus `json:"status"`
	Source      string         `json:"source"`
	Order       *string        `json:"order"`
	Key         string         `json:"key"`
}

type Observation struct {
	ObservationDate time.Time `json:"observationDate"`
	ObservationCode string    `json:"observationCode"`
}

type Enroute struct {
	TimeFrame       TimeFrame   `json:"timeframe"`
	Type            EnrouteType `json:"type"`
	TripInformation *string     `json:"tripInformation"`
}

type TimeFrame struct {
	PlannedDate        *time.Time    `json:"plannedDate"`
	PlannedFrom        *time.Time    `json:"plannedFrom"`
	PlannedTo          *time.Time    `json:"plannedTo"`
	Date               *time.Time    `json:"date"`
	From               *time.Time    `json:"from"`
	To                 *time.Time    `json:"to"`
	Type               TimeFrameType `json:"type"`
	Note               *string       `json:"note"`
	DeviationInMinutes uint32        `json:"deviationInMinutes"`
}

type ExtraInformation struct {
	Data struct {
		Text string `json:"text"`
	} `json:"data"`
	Type string `json:"type"`
}

type Address struct {
	IsMatched         bool    `json:"isMatched"`
	Street            string  `json:"street"`
	HouseNumber       string  `json:"houseNumber"`
	HouseNumberSuffix *string `json:"houseNumberSuffix"`
	PostalCode        string  `json:"postalCode"`
	Town              string  `json:"town"`
	Country           string  `json:"country"`
	Formatted         *string `json:"formatted"`
}

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpeningHours lists the opening intervals of a pickup location for one day.
// Interval bounds are "HH:MM" strings as sent by the portal.
type OpeningHours struct {
	Day   string `json:"day"`
	Hours []struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"hours"`
}

// Package is the detailed shipment view. Its status carries the formatted
// dimensions, weight and status texts.
type Package struct {
	Key        string   `json:"key"`
	SortingKey string   `json:"sortingKey"`
	Title      string   `json:"title"`
	Sender     *Party   `json:"sender"`
	Recipient  Party    `json:"recipient"`
	Status     Status   `json:"status"`
	Settings   Settings `json:"settings"`
}

type Party struct {
	Type        PartyType `json:"type"`
	CompanyName *string   `json:"companyName"`
	LastName    *string   `json:"lastName"`
	FirstName   *string   `json:"firstName"`
	Email       *string   `json:"email"`
	Address     Address   `json:"address"`
	FullName    *string   `json:"fullName"`
	Formatted   string    `json:"formatted"`
}

type Status struct {
	ShipmentType    ShipmentType     `json:"shipmentType"`
	Barcode         string           `json:"barcode"`
	Country         string           `json:"country"`
	PostalCode      string           `json:"postalCode"`
	IsInternational bool             `json:"isInternational"`
	WebURL          string           `json:"webUrl"`
	Phase           StatusPhase      `json:"phase"`
	Enroute         *Enroute         `json:"enroute"`
	IsDelivered     bool             `json:"isDelivered"`
	DeliveryStatus  DeliveryStatus   `json:"deliveryStatus"`
	Dimensions      *Dimensions      `json:"dimensions"`
	Weight          *Weight          `json:"weight"`
	Formatted       *FormattedStatus `json:"formatted"`
}

type StatusPhase struct {
	Index   uint8  `json:"index"`
	Message string `json:"message"`
}

type Settings struct {
	Title            string  `json:"title"`
	Box              BoxType `json:"box"`
	PushNotification string  `json:"pushNotification"`
}
