package card

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/panel"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

func decode(t *testing.T, doc string) *telemetry.Snapshot {
	t.Helper()
	snap, err := telemetry.Decode([]byte(doc))
	require.NoError(t, err)
	return snap
}

func testRenderer() *Renderer {
	return NewRenderer(config.Global{
		GPUNameMap: map[string]string{"NVIDIA GeForce RTX 4090": "4090"},
		UsageTopN:  2,
	})
}

func TestRender_SystemBars(t *testing.T) {
	body := testRenderer().Render(decode(t, `{"system":{"cpu_percent":95,"ram_percent":"45.5"}}`))

	assert.Equal(t, panel.BodyMetrics, body.Kind)
	assert.Equal(t, "CPU: 95%", body.CPU.Label)
	assert.Equal(t, telemetry.Red, body.CPU.Color)
	assert.Equal(t, 95.0, body.CPU.Percent)
	assert.Equal(t, "RAM: 45.5%", body.RAM.Label)
	assert.Equal(t, telemetry.Yellow, body.RAM.Color)
}

func TestRender_MissingSystem(t *testing.T) {
	body := testRenderer().Render(decode(t, `{"timestamp":"t"}`))

	assert.Equal(t, "CPU: -", body.CPU.Label)
	assert.Equal(t, 0.0, body.CPU.Percent)
	assert.Equal(t, telemetry.Green, body.CPU.Color)
	assert.Empty(t, body.Disks)
	assert.Empty(t, body.GPUs)
}

func TestRender_OutOfRangeIsClamped(t *testing.T) {
	body := testRenderer().Render(decode(t, `{"system":{"cpu_percent":140,"ram_percent":-3}}`))
	assert.Equal(t, 100.0, body.CPU.Percent)
	assert.Equal(t, "CPU: 100%", body.CPU.Label)
	assert.Equal(t, 0.0, body.RAM.Percent)
}

func TestRender_Disks(t *testing.T) {
	t.Run("sizes", func(t *testing.T) {
		body := testRenderer().Render(decode(t, `{"system":{"disks":[
			{"mount":"/data","used_percent":82,"used_gb":820.4,"total_gb":1000},
			{"percent":12}
		]}}`))
		require.Len(t, body.Disks, 2)
		assert.Equal(t, "Disk /data", body.Disks[0].Label)
		assert.Equal(t, "820G / 1000G", body.Disks[0].Text)
		assert.Equal(t, telemetry.Orange, body.Disks[0].Color)
		assert.Equal(t, "Disk", body.Disks[1].Label)
		assert.Equal(t, "12%", body.Disks[1].Text)
	})

	t.Run("ssd fallback", func(t *testing.T) {
		body := testRenderer().Render(decode(t, `{"system":{"ssd_percent":72}}`))
		require.Len(t, body.Disks, 1)
		assert.Equal(t, "Disk /home", body.Disks[0].Label)
		assert.Equal(t, "72%", body.Disks[0].Text)
	})

	t.Run("missing percent", func(t *testing.T) {
		body := testRenderer().Render(decode(t, `{"system":{"disks":[{"mount":"/x","used_gb":1}]}}`))
		assert.Equal(t, "0%", body.Disks[0].Text)
		assert.Equal(t, 0.0, body.Disks[0].Percent)
	})
}

func TestRender_GPUs(t *testing.T) {
	body := testRenderer().Render(decode(t, `{"gpus":[
		{"id":0,"name":"NVIDIA GeForce RTX 4090","vram_used_mb":12000,"vram_percent":50,"util_percent":99,
		 "processes":[{"pid":42,"user":"alice","ram_percent":30},{"pid":43,"user":"bob","ram_percent":20}]},
		{"id":"1","name":"NVIDIA A100","vram_used_mb":0,"vram_percent":0,"util_percent":0,"processes":[]}
	]}`))

	require.Len(t, body.GPUs, 2)

	g0 := body.GPUs[0]
	assert.Equal(t, "0", g0.ID)
	assert.Equal(t, "4090", g0.Name)
	assert.Equal(t, "12000MB / 50%", g0.VRAM.Text)
	assert.Equal(t, telemetry.Yellow, g0.VRAM.Color)
	assert.Equal(t, "99%", g0.Util.Text)
	assert.Equal(t, telemetry.Red, g0.Util.Color)
	require.Len(t, g0.Processes, 2)
	assert.Equal(t, "alice(30%)", g0.Processes[0].Label)
	assert.Equal(t, "PID: 42", g0.Processes[0].Detail)
	assert.Equal(t, "alice(30%) bob(20%)", g0.ProcessText())

	g1 := body.GPUs[1]
	assert.Equal(t, "A100", g1.Name)
	assert.Empty(t, g1.Processes)
	assert.Equal(t, "-", g1.ProcessText())
}

func TestRender_GPUMissingValues(t *testing.T) {
	body := testRenderer().Render(decode(t, `{"gpus":[{"name":null,"vram_percent":"abc"}]}`))
	require.Len(t, body.GPUs, 1)
	assert.Equal(t, "-", body.GPUs[0].ID)
	assert.Equal(t, "-", body.GPUs[0].Name)
	assert.Equal(t, "-MB / -", body.GPUs[0].VRAM.Text)
	assert.Equal(t, 0.0, body.GPUs[0].VRAM.Percent)
}

func TestRender_ProcessPercentClamped(t *testing.T) {
	body := testRenderer().Render(decode(t, `{"gpus":[{"id":0,"processes":[
		{"pid":1,"user":"bob","ram_percent":150},
		{"pid":2,"user":"eve","ram_percent":-4},
		{"pid":3,"ram_percent":"n/a"},
		7
	]}]}`))

	require.Len(t, body.GPUs, 1)
	procs := body.GPUs[0].Processes
	require.Len(t, procs, 3)
	assert.Equal(t, "bob(100%)", procs[0].Label)
	assert.Equal(t, "eve(0%)", procs[1].Label)
	assert.Equal(t, "?(-)", procs[2].Label)
}

func TestRender_Usage(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantTable bool
		rows      int
		title     string
		notice    string
	}{
		{"absent", `{}`, false, 0, "", ""},
		{"users not array", `{"usage":{"window_days":3,"users":{}}}`, false, 0, "", ""},
		{"empty", `{"usage":{"window_days":3,"users":[]}}`, false, 0, "", "User usage (last 3 days): no data"},
		{"default window", `{"usage":{"users":[]}}`, false, 0, "", "User usage (last 7 days): no data"},
		{"rows capped by top n", `{"usage":{"window_days":7,"users":[
			{"user":"a","active_hours":10,"avg_vram_percent":40,"max_vram_percent":90},
			{"user":"b","active_hours":5},
			{"user":"c","active_hours":1}
		]}}`, true, 2, "User usage (last 7 days)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := testRenderer().Render(decode(t, tt.doc))
			assert.Equal(t, tt.notice, body.UsageNotice)
			if !tt.wantTable {
				assert.Nil(t, body.Usage)
				return
			}
			require.NotNil(t, body.Usage)
			assert.Equal(t, tt.title, body.Usage.Title)
			assert.Len(t, body.Usage.Rows, tt.rows)
		})
	}
}

func TestRender_UsageRowText(t *testing.T) {
	body := testRenderer().Render(decode(t, `{"usage":{"users":[
		{"user":"alice","active_hours":12.25,"avg_vram_percent":140,"max_vram_percent":null}
	]}}`))
	require.NotNil(t, body.Usage)
	row := body.Usage.Rows[0]
	assert.Equal(t, "alice", row.User)
	assert.Equal(t, "12.3", row.ActiveHours)
	assert.Equal(t, "140", row.AvgVRAM, "summed across GPUs, not clamped")
	assert.Equal(t, "-", row.MaxVRAM)
}

func TestRender_ZeroTopNUsesDefault(t *testing.T) {
	r := NewRenderer(config.Global{})
	users := `[{"user":"1"},{"user":"2"},{"user":"3"},{"user":"4"},{"user":"5"},{"user":"6"},{"user":"7"}]`
	body := r.Render(decode(t, `{"usage":{"users":`+users+`}}`))
	require.NotNil(t, body.Usage)
	assert.Len(t, body.Usage.Rows, telemetry.DefaultTopUsers)
}

func boardFixture() *panel.Store {
	return panel.BuildLayout([]config.Node{
		{Name: "gpu01", Order: 1},
		{Name: "gpu02", Order: 2},
		{Name: "gpu03", Order: 3, Status: config.StatusDisabled},
	})
}

func TestApply(t *testing.T) {
	store := boardFixture()
	r := testRenderer()

	assert.True(t, r.Apply(store, "gpu01", decode(t, `{"timestamp":"2024-05-01 10:00:00","system":{"cpu_percent":1}}`)))

	p, _ := store.Panel("gpu01")
	assert.Equal(t, "2024-05-01 10:00:00", p.Label)
	assert.Equal(t, panel.BodyMetrics, p.Body.Kind)

	other, _ := store.Panel("gpu02")
	assert.Equal(t, panel.BodyConnecting, other.Body.Kind)
	assert.Equal(t, panel.LabelWaiting, other.Label)

	r.Apply(store, "gpu02", decode(t, `{}`))
	p2, _ := store.Panel("gpu02")
	assert.Equal(t, "-", p2.Label)
}

func TestApply_DisabledNodeUntouched(t *testing.T) {
	store := boardFixture()
	assert.False(t, testRenderer().Apply(store, "gpu03", decode(t, `{"timestamp":"t"}`)))

	p, _ := store.Panel("gpu03")
	assert.Equal(t, panel.BodyDisabled, p.Body.Kind)
}

func TestOffline(t *testing.T) {
	store := boardFixture()
	r := testRenderer()
	r.Apply(store, "gpu01", decode(t, `{"timestamp":"earlier"}`))

	assert.True(t, r.Offline(store, "gpu01", stderrors.New("connection refused")))

	p, _ := store.Panel("gpu01")
	assert.Equal(t, panel.BodyOffline, p.Body.Kind)
	assert.Equal(t, panel.OfflineMessage, p.Body.Message)
	assert.Equal(t, "connection refused", p.Body.Detail)
	assert.Equal(t, "earlier", p.Label, "offline keeps the last timestamp")
}
