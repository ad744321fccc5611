// v0
// internal/event/event.go
package event

import "github.com/google/uuid"

// Kind names an event variant. The string form is used on the wire.
type Kind string

const (
	KindClockTick        Kind = "clock_tick"
	KindScheduleRequest  Kind = "schedule_request"
	KindAssignRequest    Kind = "assign_request"
	KindRequestAccepted  Kind = "request_accepted"
	KindRequestRejected  Kind = "request_rejected"
	KindElevatorArrived  Kind = "elevator_arrived"
	KindElevatorIdle     Kind = "elevator_idle"
	KindPassengerWaiting Kind = "passenger_waiting"
	KindLoadPassenger    Kind = "load_passenger"
	KindDropPassenger    Kind = "drop_passenger"
	KindMissedConnection Kind = "missed_connection"
	KindHealthProbe      Kind = "health_probe"
)

// Event is the closed set of messages carried by the bus. Consumers
// dispatch with a type switch over the concrete types below.
type Event interface {
	Kind() Kind
	sealed()
}

// Passenger is immutable once created.
type Passenger struct {
	ID          uuid.UUID `json:"id"`
	Destination int       `json:"destination"`
}

// NewPassenger allocates a passenger headed to dest.
func NewPassenger(dest int) Passenger {
	return Passenger{ID: uuid.New(), Destination: dest}
}

// Token is the baseline a scheduler observed when it picked a car.
type Token struct {
	TimeLeft int64 `json:"timeLeft"`
	EndTime  int64 `json:"endTime"`
}

type ClockTick struct {
	Value int64 `json:"value"`
}

// ScheduleRequest asks the scheduler to find a car for a waiting passenger.
type ScheduleRequest struct {
	Passenger Passenger `json:"passenger"`
	Floor     int       `json:"floor"`
}

// AssignRequest commands one car to pick up a passenger. A nil Token means
// the car accepts unconditionally.
type AssignRequest struct {
	Passenger Passenger `json:"passenger"`
	Floor     int       `json:"floor"`
	Elevator  int       `json:"elevator"`
	Token     *Token    `json:"token,omitempty"`
}

type RequestAccepted struct {
	Request AssignRequest `json:"request"`
}

type RequestRejected struct {
	Request AssignRequest `json:"request"`
}

// ElevatorArrived is emitted when a car stops on a turnpoint at tick Clock.
type ElevatorArrived struct {
	Elevator int   `json:"elevator"`
	Floor    int   `json:"floor"`
	Clock    int64 `json:"clock"`
}

type ElevatorIdle struct {
	Elevator int   `json:"elevator"`
	Floor    int   `json:"floor"`
	Clock    int64 `json:"clock"`
}

type PassengerWaiting struct {
	Passenger Passenger `json:"passenger"`
	Floor     int       `json:"floor"`
	Elevator  int       `json:"elevator"`
}

type LoadPassenger struct {
	Passenger Passenger `json:"passenger"`
	Floor     int       `json:"floor"`
	Elevator  int       `json:"elevator"`
}

type DropPassenger struct {
	Passenger Passenger `json:"passenger"`
	Floor     int       `json:"floor"`
	Elevator  int       `json:"elevator"`
}

// MissedConnection reports a passenger whose car left before boarding.
type MissedConnection struct {
	Passenger Passenger `json:"passenger"`
	Floor     int       `json:"floor"`
	Elevator  int       `json:"elevator"`
}

type HealthProbe struct {
	Clock int64 `json:"clock"`
}

func (ClockTick) Kind() Kind        { return KindClockTick }
func (ScheduleRequest) Kind() Kind  { return KindScheduleRequest }
func (AssignRequest) Kind() Kind    { return KindAssignRequest }
func (RequestAccepted) Kind() Kind  { return KindRequestAccepted }
func (RequestRejected) Kind() Kind  { return KindRequestRejected }
func (ElevatorArrived) Kind() Kind  { return KindElevatorArrived }
func (ElevatorIdle) Kind() Kind     { return KindElevatorIdle }
func (PassengerWaiting) Kind() Kind { return KindPassengerWaiting }
func (LoadPassenger) Kind() Kind    { return KindLoadPassenger }
func (DropPassenger) Kind() Kind    { return KindDropPassenger }
func (MissedConnection) Kind() Kind { return KindMissedConnection }
func (HealthProbe) Kind() Kind      { return KindHealthProbe }

func (ClockTick) sealed()        {}
func (ScheduleRequest) sealed()  {}
func (AssignRequest) sealed()    {}
func (RequestAccepted) sealed()  {}
func (RequestRejected) sealed()  {}
func (ElevatorArrived) sealed()  {}
func (ElevatorIdle) sealed()     {}
func (PassengerWaiting) sealed() {}
func (LoadPassenger) sealed()    {}
func (DropPassenger) sealed()    {}
func (MissedConnection) sealed() {}
func (HealthProbe) sealed()      {}
