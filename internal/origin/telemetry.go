package origin

import (
	"encoding/json"
	"sync"
)

// TelescopeData is the typed projection of raw Origin telemetry. One
// instance accumulates the most recent values per subsystem; the client
// derives TelescopeStatus from it after each update.
type TelescopeData struct {
	Mount       MountData
	Environment EnvironmentData
	Camera      CameraData
}

// MountData carries the Mount subsystem telemetry. Encoder positions are
// reported in radians: Enc0 is right ascension, Enc1 is declination.
type MountData struct {
	IsAligned    bool
	IsTracking   bool
	IsGotoOver   bool
	Enc0         float64
	Enc1         float64
	Latitude     float64
	Longitude    float64
	NumAlignRefs int
	BatteryLevel string
	Date         string
	Time         string
	TimeZone     string
}

// EnvironmentData carries thermal and humidity telemetry in Celsius and
// percent.
type EnvironmentData struct {
	AmbientTemperature   float64
	CameraTemperature    float64
	CPUTemperature       float64
	FrontCellTemperature float64
	Humidity             float64
	DewPoint             float64
}

// CameraData carries the current capture parameters reported by the camera.
type CameraData struct {
	Binning  int
	BitDepth int
	Exposure float64
	ISO      int
}

// UpdateKind reports which subsystem an inbound frame updated.
type UpdateKind int

const (
	// UpdateNone means the frame carried nothing the projector tracks.
	UpdateNone UpdateKind = iota
	UpdateMount
	UpdateEnvironment
	UpdateCamera
	// UpdateImageReady means the frame was a NewImageReady notification;
	// the FilePath field of the Update names the file to fetch.
	UpdateImageReady
)

// Update describes the effect of one processed frame.
type Update struct {
	Kind       UpdateKind
	SequenceID int
	FilePath   string
}

// frameHeader is the envelope common to every inbound frame.
type frameHeader struct {
	Command     string `json:"Command"`
	Destination string `json:"Destination"`
	Source      string `json:"Source"`
	Type        string `json:"Type"`
	SequenceID  int    `json:"SequenceID"`
	ErrorCode   int    `json:"ErrorCode"`
	ErrorMsg    string `json:"ErrorMessage"`
}

type mountFrame struct {
	IsAligned    *bool    `json:"IsAligned"`
	IsTracking   *bool    `json:"IsTracking"`
	IsGotoOver   *bool    `json:"IsGotoOver"`
	Enc0         *float64 `json:"Enc0"`
	Enc1         *float64 `json:"Enc1"`
	Latitude     *float64 `json:"Latitude"`
	Longitude    *float64 `json:"Longitude"`
	NumAlignRefs *int     `json:"NumAlignRefs"`
	BatteryLevel *string  `json:"BatteryLevel"`
	Date         *string  `json:"Date"`
	Time         *string  `json:"Time"`
	TimeZone     *string  `json:"TimeZone"`
}

type environmentFrame struct {
	AmbientTemperature   *float64 `json:"AmbientTemperature"`
	CameraTemperature    *float64 `json:"CameraTemperature"`
	CPUTemperature       *float64 `json:"CpuTemperature"`
	FrontCellTemperature *float64 `json:"FrontCellTemperature"`
	Humidity             *float64 `json:"Humidity"`
	DewPoint             *float64 `json:"DewPoint"`
}

type cameraFrame struct {
	Binning  *int     `json:"Binning"`
	BitDepth *int     `json:"BitDepth"`
	Exposure *float64 `json:"Exposure"`
	ISO      *int     `json:"ISO"`
}

type imageReadyFrame struct {
	FileLocation string `json:"FileLocation"`
}

// Projector turns raw Origin JSON frames into the TelescopeData snapshot.
// Frames arrive on the WebSocket receive loop; Data may be read from any
// goroutine.
type Projector struct {
	mu   sync.Mutex
	data TelescopeData
}

// NewProjector returns an empty projector.
func NewProjector() *Projector {
	return &Projector{}
}

// Data returns a copy of the accumulated telemetry snapshot.
func (p *Projector) Data() TelescopeData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

// Process parses one inbound frame and folds any telemetry it carries into
// the snapshot. Fields absent from the frame keep their previous values, so
// partial status responses never zero out known state.
func (p *Projector) Process(raw []byte) Update {
	var header frameHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return Update{Kind: UpdateNone}
	}

	// A finished capture is announced by the image server, not by the
	// camera status stream.
	if header.Source == "ImageServer" && header.Command == cmdNewImageReady && header.Type == "Notification" {
		var frame imageReadyFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.FileLocation == "" {
			return Update{Kind: UpdateNone}
		}
		return Update{Kind: UpdateImageReady, SequenceID: header.SequenceID, FilePath: frame.FileLocation}
	}

	switch header.Source {
	case destMount:
		var frame mountFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return Update{Kind: UpdateNone}
		}
		p.mu.Lock()
		m := &p.data.Mount
		setBool(&m.IsAligned, frame.IsAligned)
		setBool(&m.IsTracking, frame.IsTracking)
		setBool(&m.IsGotoOver, frame.IsGotoOver)
		setFloat(&m.Enc0, frame.Enc0)
		setFloat(&m.Enc1, frame.Enc1)
		setFloat(&m.Latitude, frame.Latitude)
		setFloat(&m.Longitude, frame.Longitude)
		setInt(&m.NumAlignRefs, frame.NumAlignRefs)
		setString(&m.BatteryLevel, frame.BatteryLevel)
		setString(&m.Date, frame.Date)
		setString(&m.Time, frame.Time)
		setString(&m.TimeZone, frame.TimeZone)
		p.mu.Unlock()
		return Update{Kind: UpdateMount, SequenceID: header.SequenceID}

	case destEnvironment:
		var frame environmentFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return Update{Kind: UpdateNone}
		}
		p.mu.Lock()
		e := &p.data.Environment
		setFloat(&e.AmbientTemperature, frame.AmbientTemperature)
		setFloat(&e.CameraTemperature, frame.CameraTemperature)
		setFloat(&e.CPUTemperature, frame.CPUTemperature)
		setFloat(&e.FrontCellTemperature, frame.FrontCellTemperature)
		setFloat(&e.Humidity, frame.Humidity)
		setFloat(&e.DewPoint, frame.DewPoint)
		p.mu.Unlock()
		return Update{Kind: UpdateEnvironment, SequenceID: header.SequenceID}

	case destCamera:
		var frame cameraFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return Update{Kind: UpdateNone}
		}
		p.mu.Lock()
		c := &p.data.Camera
		setInt(&c.Binning, frame.Binning)
		setInt(&c.BitDepth, frame.BitDepth)
		setFloat(&c.Exposure, frame.Exposure)
		setInt(&c.ISO, frame.ISO)
		p.mu.Unlock()
		return Update{Kind: UpdateCamera, SequenceID: header.SequenceID}
	}

	return Update{Kind: UpdateNone, SequenceID: header.SequenceID}
}

// reset clears the snapshot. Called on disconnect so a reconnect starts
// from a clean slate.
func (p *Projector) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = TelescopeData{}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
