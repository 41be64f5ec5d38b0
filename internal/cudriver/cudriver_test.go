package cudriver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultNames(t *testing.T) {
	require.Equal(t, "CUDA_SUCCESS", Success.String())
	require.Equal(t, "CUDA_ERROR_OUT_OF_MEMORY", ErrorOutOfMemory.Error())
	require.Equal(t, "CUDA_ERROR_LAUNCH_FAILED", ErrorLaunchFailed.Error())
	require.Equal(t, "CUDA_ERROR(42)", Result(42).String())
}
