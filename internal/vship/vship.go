// Package vship provides CGO bindings to libvship's GPU perceptual-metric
// kernels: SSIMULACRA2, Butteraugli, and CVVDP.
package vship

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lvship

#include <stdlib.h>
#include <VshipAPI.h>
#include <VshipColor.h>
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

// Kind selects which metric kernel a Processor runs.
type Kind int

const (
	KindSSIMULACRA2 Kind = iota
	KindButteraugli
	KindCVVDP
)

func (k Kind) String() string {
	switch k {
	case KindSSIMULACRA2:
		return "ssimulacra2"
	case KindButteraugli:
		return "butteraugli"
	case KindCVVDP:
		return "cvvdp"
	default:
		return "unknown"
	}
}

// Processor wraps one VSHIP metric handler. A Processor is not safe for
// concurrent use; CVVDP in particular carries temporal state across Compute
// calls, so every scoring goroutine owns its own Processor.
type Processor struct {
	kind    Kind
	ssimu2  C.Vship_SSIMU2Handler
	butter  C.Vship_ButterHandler
	cvvdp   C.Vship_CVVDPHandler
	open    bool
}

// Version contains VSHIP library version information.
type Version struct {
	Major   int
	Minor   int
	Patch   int
	Backend string // "CUDA" or "HIP"
}

// GetVersion returns the VSHIP library version.
func GetVersion() Version {
	v := C.Vship_GetVersion()
	backend := "HIP"
	if v.backend == C.Vship_Cuda {
		backend = "CUDA"
	}
	return Version{
		Major:   int(v.major),
		Minor:   int(v.minor),
		Patch:   int(v.minorMinor),
		Backend: backend,
	}
}

// GetDetailedError returns detailed error information from the last error.
func GetDetailedError() string {
	buf := make([]C.char, 2048)
	C.Vship_GetDetailedLastError(&buf[0], 2048)
	return C.GoString(&buf[0])
}

// GetDeviceCount returns the number of available GPU devices.
func GetDeviceCount() (int, error) {
	var count C.int
	ret := C.Vship_GetDeviceCount(&count)
	if ret != C.Vship_NoError {
		detail := GetDetailedError()
		return 0, fmt.Errorf("failed to get device count: %s (detail: %s)", getErrorMessage(ret), detail)
	}
	return int(count), nil
}

// CheckGPU runs a full GPU check for the specified device.
func CheckGPU(gpuID int) error {
	ret := C.Vship_GPUFullCheck(C.int(gpuID))
	if ret != C.Vship_NoError {
		return fmt.Errorf("GPU check failed: %s", getErrorMessage(ret))
	}
	return nil
}

// InitDevice initializes the VSHIP GPU device.
// Must be called before creating any Processor instances.
func InitDevice() error {
	ret := C.Vship_SetDevice(0)
	if ret != C.Vship_NoError {
		ver := GetVersion()
		detail := GetDetailedError()
		return fmt.Errorf("VSHIP %d.%d.%d (%s) failed to set device: %s (detail: %s)",
			ver.Major, ver.Minor, ver.Patch, ver.Backend, getErrorMessage(ret), detail)
	}
	return nil
}

// NewProcessor creates a metric processor of the given kind for the given
// video dimensions. FFMS2 always decodes to 10-bit YUV, so both colorspaces
// are configured for 10-bit input. fpsNum/fpsDen only matter to CVVDP,
// whose model is temporal.
func NewProcessor(
	kind Kind,
	width, height uint32,
	fpsNum, fpsDen uint32,
	matrix, transfer, primaries *int,
	colorRange, chromaSamplePos *int,
) (*Processor, error) {
	srcCS := createColorspace(width, height, true, matrix, transfer, primaries, colorRange, chromaSamplePos)
	disCS := createColorspace(width, height, true, matrix, transfer, primaries, colorRange, chromaSamplePos)

	p := &Processor{kind: kind}
	var ret C.Vship_Exception
	switch kind {
	case KindSSIMULACRA2:
		ret = C.Vship_SSIMU2Init(&p.ssimu2, srcCS, disCS)
	case KindButteraugli:
		ret = C.Vship_ButterInit(&p.butter, srcCS, disCS)
	case KindCVVDP:
		ret = C.Vship_CVVDPInit(&p.cvvdp, srcCS, disCS, C.double(float64(fpsNum)/float64(fpsDen)))
	default:
		return nil, fmt.Errorf("unknown metric kind %d", kind)
	}
	if ret != C.Vship_NoError {
		return nil, fmt.Errorf("failed to initialize %s: %s", kind, getErrorMessage(ret))
	}
	p.open = true
	return p, nil
}

// Kind returns the metric this processor computes.
func (p *Processor) Kind() Kind { return p.kind }

// Reset clears kernel state carried across Compute calls. Only CVVDP holds
// such state (its score is a temporal aggregate over the frames fed so
// far); for the stateless kernels Reset is a no-op. Callers must Reset
// before scoring a new probe.
func (p *Processor) Reset() error {
	if p.kind != KindCVVDP || !p.open {
		return nil
	}
	if ret := C.Vship_CVVDPReset(p.cvvdp); ret != C.Vship_NoError {
		return fmt.Errorf("failed to reset CVVDP state: %s", getErrorMessage(ret))
	}
	return nil
}

// Compute scores one (source, distorted) frame pair. srcPlanes and disPlanes
// are YUV plane pointers [Y, U, V]; the stride arrays are per-plane line
// sizes in bytes. For CVVDP the returned value is the temporal aggregate
// over every frame fed since the last Reset.
func (p *Processor) Compute(
	srcPlanes, disPlanes [3]unsafe.Pointer,
	srcStrides, disStrides [3]int64,
) (float64, error) {
	// CGO forbids passing Go pointers that contain Go pointers, so the
	// plane-pointer and stride arrays are marshalled through C memory.
	srcPtrs := C.malloc(3 * C.size_t(unsafe.Sizeof(uintptr(0))))
	disPtrs := C.malloc(3 * C.size_t(unsafe.Sizeof(uintptr(0))))
	srcLineSizes := C.malloc(3 * C.size_t(unsafe.Sizeof(C.int64_t(0))))
	disLineSizes := C.malloc(3 * C.size_t(unsafe.Sizeof(C.int64_t(0))))
	defer C.free(srcPtrs)
	defer C.free(disPtrs)
	defer C.free(srcLineSizes)
	defer C.free(disLineSizes)

	srcPtrSlice := (*[3]*C.uint8_t)(srcPtrs)
	disPtrSlice := (*[3]*C.uint8_t)(disPtrs)
	srcLineSlice := (*[3]C.int64_t)(srcLineSizes)
	disLineSlice := (*[3]C.int64_t)(disLineSizes)

	for i := range 3 {
		srcPtrSlice[i] = (*C.uint8_t)(srcPlanes[i])
		disPtrSlice[i] = (*C.uint8_t)(disPlanes[i])
		srcLineSlice[i] = C.int64_t(srcStrides[i])
		disLineSlice[i] = C.int64_t(disStrides[i])
	}

	var score C.double
	var ret C.Vship_Exception
	switch p.kind {
	case KindSSIMULACRA2:
		ret = C.Vship_ComputeSSIMU2(
			p.ssimu2, &score,
			(**C.uint8_t)(srcPtrs), (**C.uint8_t)(disPtrs),
			(*C.int64_t)(srcLineSizes), (*C.int64_t)(disLineSizes),
		)
	case KindButteraugli:
		ret = C.Vship_ComputeButter(
			p.butter, &score,
			(**C.uint8_t)(srcPtrs), (**C.uint8_t)(disPtrs),
			(*C.int64_t)(srcLineSizes), (*C.int64_t)(disLineSizes),
		)
	case KindCVVDP:
		ret = C.Vship_ComputeCVVDP(
			p.cvvdp, &score,
			(**C.uint8_t)(srcPtrs), (**C.uint8_t)(disPtrs),
			(*C.int64_t)(srcLineSizes), (*C.int64_t)(disLineSizes),
		)
	}

	if ret != C.Vship_NoError {
		return 0, fmt.Errorf("%s computation failed: %s", p.kind, getErrorMessage(ret))
	}

	return float64(score), nil
}

// Close releases the VSHIP resources.
func (p *Processor) Close() error {
	if !p.open {
		return nil
	}
	var ret C.Vship_Exception
	switch p.kind {
	case KindSSIMULACRA2:
		ret = C.Vship_SSIMU2Free(p.ssimu2)
	case KindButteraugli:
		ret = C.Vship_ButterFree(p.butter)
	case KindCVVDP:
		ret = C.Vship_CVVDPFree(p.cvvdp)
	}
	if ret != C.Vship_NoError {
		return errors.New("failed to free " + p.kind.String() + " handler")
	}
	p.open = false
	return nil
}

// createColorspace creates a Vship_Colorspace_t struct from Go parameters.
func createColorspace(
	width, height uint32,
	is10Bit bool,
	matrix, transfer, primaries *int,
	colorRange, chromaSamplePos *int,
) C.Vship_Colorspace_t {
	var cs C.Vship_Colorspace_t

	cs.width = C.int64_t(width)
	cs.height = C.int64_t(height)
	cs.target_width = -1
	cs.target_height = -1

	if is10Bit {
		cs.sample = C.Vship_SampleUINT10
	} else {
		cs.sample = C.Vship_SampleUINT8
	}

	cs._range = C.Vship_RangeLimited
	if colorRange != nil && *colorRange == 2 {
		cs._range = C.Vship_RangeFull
	}

	// 4:2:0 subsampling
	cs.subsampling = C.Vship_ChromaSubsample_t{subw: 1, subh: 1}

	cs.chromaLocation = C.Vship_ChromaLoc_Left
	if chromaSamplePos != nil && *chromaSamplePos == 2 {
		cs.chromaLocation = C.Vship_ChromaLoc_TopLeft
	}

	cs.colorFamily = C.Vship_ColorYUV

	cs.YUVMatrix = C.Vship_MATRIX_BT709
	if matrix != nil {
		switch *matrix {
		case 0:
			cs.YUVMatrix = C.Vship_MATRIX_RGB
		case 5:
			cs.YUVMatrix = C.Vship_MATRIX_BT470_BG
		case 6:
			cs.YUVMatrix = C.Vship_MATRIX_ST170_M
		case 9:
			cs.YUVMatrix = C.Vship_MATRIX_BT2020_NCL
		case 10:
			cs.YUVMatrix = C.Vship_MATRIX_BT2020_CL
		case 14:
			cs.YUVMatrix = C.Vship_MATRIX_BT2100_ICTCP
		}
	}

	cs.transferFunction = C.Vship_TRC_BT709
	if transfer != nil {
		switch *transfer {
		case 4:
			cs.transferFunction = C.Vship_TRC_BT470_M
		case 5:
			cs.transferFunction = C.Vship_TRC_BT470_BG
		case 6:
			cs.transferFunction = C.Vship_TRC_BT601
		case 8:
			cs.transferFunction = C.Vship_TRC_Linear
		case 13:
			cs.transferFunction = C.Vship_TRC_sRGB
		case 16:
			cs.transferFunction = C.Vship_TRC_PQ
		case 17:
			cs.transferFunction = C.Vship_TRC_ST428
		case 18:
			cs.transferFunction = C.Vship_TRC_HLG
		}
	}

	cs.primaries = C.Vship_PRIMARIES_BT709
	if primaries != nil {
		switch *primaries {
		case -1:
			cs.primaries = C.Vship_PRIMARIES_INTERNAL
		case 4:
			cs.primaries = C.Vship_PRIMARIES_BT470_M
		case 5:
			cs.primaries = C.Vship_PRIMARIES_BT470_BG
		case 9:
			cs.primaries = C.Vship_PRIMARIES_BT2020
		}
	}

	cs.crop = C.Vship_CropRectangle_t{top: 0, bottom: 0, left: 0, right: 0}

	return cs
}

// getErrorMessage retrieves the error message for a VSHIP exception.
func getErrorMessage(exc C.Vship_Exception) string {
	buf := make([]C.char, 1024)
	C.Vship_GetErrorMessage(exc, &buf[0], 1024)
	return C.GoString(&buf[0])
}
