package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPercent(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 42.5, 42.5},
		{"negative", -5, 0},
		{"over 100", 150, 100},
		{"zero", 0, 0},
		{"hundred", 100, 100},
		{"NaN", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 0},
		{"negative infinity", math.Inf(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampPercent(tt.in))
		})
	}
}

func TestClampPercent_AlwaysInRange(t *testing.T) {
	inputs := []float64{-1e308, -0.0001, 0.0001, 99.9999, 100.0001, 1e308, math.NaN(), math.Inf(1)}
	for _, in := range inputs {
		got := ClampPercent(in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestColorClassFor(t *testing.T) {
	tests := []struct {
		in   float64
		want ColorClass
	}{
		{0, Green},
		{29.9, Green},
		{30, Yellow},
		{60, Yellow},
		{60.1, Orange},
		{90, Orange},
		{90.1, Red},
		{100, Red},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ColorClassFor(tt.in), "ColorClassFor(%v)", tt.in)
	}
}

func TestColorClass_Names(t *testing.T) {
	assert.Equal(t, "green", Green.String())
	assert.Equal(t, "yellow", Yellow.String())
	assert.Equal(t, "orange", Orange.String())
	assert.Equal(t, "red", Red.String())
	assert.Equal(t, "bg-red", Red.CSSClass())
	assert.Equal(t, "bg-green", Green.CSSClass())
}

func TestResolveDiskList(t *testing.T) {
	t.Run("reported disks win", func(t *testing.T) {
		sys := SystemStats{
			SSDPercent: Num(10),
			Disks:      List[DiskStats]{{Mount: "/data", UsedPercent: Num(50)}},
		}
		disks := ResolveDiskList(sys)
		assert.Len(t, disks, 1)
		assert.Equal(t, Text("/data"), disks[0].Mount)
	})

	t.Run("ssd_percent becomes /home", func(t *testing.T) {
		disks := ResolveDiskList(SystemStats{SSDPercent: Num(72)})
		assert.Equal(t, []DiskStats{{Mount: "/home", UsedPercent: Num(72)}}, disks)
	})

	t.Run("empty disks falls back to ssd_percent", func(t *testing.T) {
		disks := ResolveDiskList(SystemStats{SSDPercent: Num(5), Disks: List[DiskStats]{}})
		assert.Len(t, disks, 1)
		assert.Equal(t, Text("/home"), disks[0].Mount)
	})

	t.Run("nothing reported", func(t *testing.T) {
		disks := ResolveDiskList(SystemStats{})
		assert.NotNil(t, disks)
		assert.Empty(t, disks)
	})
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{512.4, "512G"},
		{100, "100G"},
		{99.94, "99.9G"},
		{99.96, "100.0G"},
		{100.4, "100G"},
		{7, "7.0G"},
		{0, "0.0G"},
		{math.NaN(), "-"},
		{math.Inf(1), "-"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.in), "FormatSize(%v)", tt.in)
	}
}

func TestResolveGPUDisplayName(t *testing.T) {
	nameMap := map[string]string{
		"NVIDIA GeForce RTX 4090": "4090",
		"Tesla V100":              "",
	}

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"mapped", "NVIDIA GeForce RTX 4090", "4090"},
		{"prefix stripped", "NVIDIA A100-SXM4-80GB", "A100-SXM4-80GB"},
		{"only first prefix", "NVIDIA NVIDIA X", "NVIDIA X"},
		{"empty mapping ignored", "Tesla V100", "Tesla V100"},
		{"unchanged", "Radeon", "Radeon"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveGPUDisplayName(tt.raw, nameMap))
		})
	}
}

func TestResolveGPUDisplayName_NilMap(t *testing.T) {
	assert.Equal(t, "H100", ResolveGPUDisplayName("NVIDIA H100", nil))
}

func TestTopUsers(t *testing.T) {
	users := List[UserUsage]{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		users = append(users, UserUsage{User: Text(name)})
	}
	usage := &UsageStats{Users: users}

	assert.Len(t, TopUsers(usage, 3), 3)
	assert.Len(t, TopUsers(usage, 0), DefaultTopUsers)
	assert.Len(t, TopUsers(usage, -1), DefaultTopUsers)
	assert.Len(t, TopUsers(usage, 100), 8)
	assert.Nil(t, TopUsers(nil, 3))

	top := TopUsers(usage, 2)
	assert.Equal(t, Text("a"), top[0].User)
	assert.Equal(t, Text("b"), top[1].User)
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "-", FormatPercent(Number{}))
	assert.Equal(t, "42", FormatPercent(Num(42)))
	assert.Equal(t, "42.5", FormatPercent(Num(42.5)))
	assert.Equal(t, "100", FormatPercent(Num(250)))
	assert.Equal(t, "0", FormatPercent(Num(-3)))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "-", FormatNumber(Number{}))
	assert.Equal(t, "12.3", FormatNumber(Num(12.34)))
	assert.Equal(t, "140", FormatNumber(Num(140)))
}
