package origin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectorMountFrames(t *testing.T) {
	p := NewProjector()

	update := p.Process([]byte(`{
		"Command": "GetStatus",
		"Source": "Mount",
		"Type": "Response",
		"SequenceID": 2001,
		"IsAligned": true,
		"IsTracking": true,
		"IsGotoOver": false,
		"Enc0": 1.5707963,
		"Enc1": 0.7853981,
		"BatteryLevel": "High",
		"NumAlignRefs": 3
	}`))

	require.Equal(t, UpdateMount, update.Kind)
	assert.Equal(t, 2001, update.SequenceID)

	data := p.Data()
	assert.True(t, data.Mount.IsAligned)
	assert.True(t, data.Mount.IsTracking)
	assert.False(t, data.Mount.IsGotoOver)
	assert.InDelta(t, 1.5707963, data.Mount.Enc0, 1e-9)
	assert.Equal(t, "High", data.Mount.BatteryLevel)
	assert.Equal(t, 3, data.Mount.NumAlignRefs)

	// A partial frame only touches the fields it carries.
	update = p.Process([]byte(`{
		"Source": "Mount",
		"Type": "Notification",
		"IsGotoOver": true
	}`))
	require.Equal(t, UpdateMount, update.Kind)

	data = p.Data()
	assert.True(t, data.Mount.IsGotoOver)
	assert.True(t, data.Mount.IsAligned, "absent fields keep previous values")
	assert.InDelta(t, 1.5707963, data.Mount.Enc0, 1e-9)
}

func TestProjectorEnvironmentFrame(t *testing.T) {
	p := NewProjector()

	update := p.Process([]byte(`{
		"Source": "Environment",
		"Type": "Response",
		"SequenceID": 2010,
		"AmbientTemperature": 12.5,
		"Humidity": 61.0,
		"DewPoint": 5.2
	}`))

	require.Equal(t, UpdateEnvironment, update.Kind)
	data := p.Data()
	assert.InDelta(t, 12.5, data.Environment.AmbientTemperature, 1e-9)
	assert.InDelta(t, 61.0, data.Environment.Humidity, 1e-9)
}

func TestProjectorCameraFrame(t *testing.T) {
	p := NewProjector()

	update := p.Process([]byte(`{
		"Source": "Camera",
		"Type": "Response",
		"Binning": 2,
		"BitDepth": 16,
		"Exposure": 1.5,
		"ISO": 200
	}`))

	require.Equal(t, UpdateCamera, update.Kind)
	data := p.Data()
	assert.Equal(t, 2, data.Camera.Binning)
	assert.Equal(t, 200, data.Camera.ISO)
	assert.InDelta(t, 1.5, data.Camera.Exposure, 1e-9)
}

func TestProjectorImageReady(t *testing.T) {
	p := NewProjector()

	t.Run("notification carries file location", func(t *testing.T) {
		update := p.Process([]byte(`{
			"Command": "NewImageReady",
			"Source": "ImageServer",
			"Type": "Notification",
			"SequenceID": 4,
			"FileLocation": "Images/Temp/capture_0001.tiff"
		}`))

		require.Equal(t, UpdateImageReady, update.Kind)
		assert.Equal(t, "Images/Temp/capture_0001.tiff", update.FilePath)
	})

	t.Run("missing file location is ignored", func(t *testing.T) {
		update := p.Process([]byte(`{
			"Command": "NewImageReady",
			"Source": "ImageServer",
			"Type": "Notification"
		}`))
		assert.Equal(t, UpdateNone, update.Kind)
	})
}

func TestProjectorIgnoresNoise(t *testing.T) {
	p := NewProjector()

	assert.Equal(t, UpdateNone, p.Process([]byte(`not json`)).Kind)
	assert.Equal(t, UpdateNone, p.Process([]byte(`{"Source":"Disk","Type":"Response"}`)).Kind)

	// Unknown sources still surface their sequence ID for correlation.
	update := p.Process([]byte(`{"Source":"TaskController","Type":"Response","SequenceID":2042}`))
	assert.Equal(t, UpdateNone, update.Kind)
	assert.Equal(t, 2042, update.SequenceID)
}

func TestProjectorReset(t *testing.T) {
	p := NewProjector()
	p.Process([]byte(`{"Source":"Mount","IsTracking":true}`))
	require.True(t, p.Data().Mount.IsTracking)

	p.reset()
	assert.False(t, p.Data().Mount.IsTracking)
}
