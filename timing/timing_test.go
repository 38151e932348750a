package timing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vconn/obdlink/config"
)

func TestFirstCallReturnsAT0Ceiling(t *testing.T) {
	store := config.NewDefault()
	mgr := New(store)
	require.Equal(t, defaultTimeoutMs, mgr.P2Timeout())
}

func TestDefaultModeIsAT1(t *testing.T) {
	store := config.NewDefault()
	mgr := New(store)
	require.Equal(t, AT1, mgr.Mode())
}

func TestRecordP2DiscardsFirstSamples(t *testing.T) {
	store := config.NewDefault()
	mgr := New(store)
	mgr.RecordP2(100)
	mgr.RecordP2(120)
	// still within threshold, learned timeout untouched
	require.Equal(t, defaultTimeoutMs, mgr.P2Timeout())

	mgr.RecordP2(80)
	// now learned, AT1 adds the 30ms margin
	require.Equal(t, uint32(80+30), mgr.P2Timeout())
}

func TestAT2UsesTighterMargin(t *testing.T) {
	store := config.NewDefault()
	mgr := New(store)
	mgr.SetMode(AT2)
	mgr.RecordP2(10)
	mgr.RecordP2(10)
	mgr.RecordP2(50)
	require.Equal(t, uint32(50+10), mgr.P2Timeout())
}

func TestAT0UsesConfiguredTimeout(t *testing.T) {
	store := config.NewDefault()
	store.SetInt(config.ParTimeout, 10)
	mgr := New(store)
	mgr.SetMode(AT0)
	require.Equal(t, uint32(10*4), mgr.P2Timeout())
}

func TestCANMultiplierAppliesOnlyWhenEligible(t *testing.T) {
	store := config.NewDefault()
	store.SetInt(config.ParTimeout, 10)
	store.SetBool(config.ParCanTimeoutMlt, true)
	mgr := New(store)
	mgr.SetMode(AT0)
	require.Equal(t, uint32(10*4), mgr.P2Timeout(), "multiplier should not apply without CAN eligibility")

	mgr.SetCANEligible(true)
	require.Equal(t, uint32(10*4*5), mgr.P2Timeout())
}

func TestResetClearsLearnedTimeout(t *testing.T) {
	store := config.NewDefault()
	mgr := New(store)
	mgr.RecordP2(1)
	mgr.RecordP2(1)
	mgr.RecordP2(90)
	require.NotEqual(t, defaultTimeoutMs, mgr.P2Timeout())
	mgr.Reset()
	require.Equal(t, defaultTimeoutMs, mgr.P2Timeout())
}
