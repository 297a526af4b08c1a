// Package ncnn provides Go bindings for the ncnn neural network inference
// framework via CGo static linking.
//
// voicesmith uses ncnn for the two small always-on audio models: the silero
// voice-activity graph and the wake-word classifier. Both are .param/.bin
// pairs supplied through configuration and loaded with [NewNet].
//
// Usage:
//
//	net, _ := ncnn.NewNet(paramPath, binPath)
//	defer net.Close()
//
//	ex, _ := net.NewExtractor()
//	defer ex.Close()
//
//	ex.SetInput("in0", inputMat)
//	out, _ := ex.Extract("out0")
//	score := out.FloatData()
//
// A Net is safe for concurrent use: multiple Extractors can run in parallel
// on one Net. Each Extractor must stay on a single goroutine.
//
// FP16 arithmetic is disabled on load: the silero graph produces
// intermediate values above 65504 which overflow half-precision floats.
package ncnn

/*
#include <ncnn/c_api.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"
)

// Version returns the linked ncnn library version string.
func Version() string {
	return C.GoString(C.ncnn_version())
}

// Net holds a loaded model.
type Net struct {
	net C.ncnn_net_t
}

// NetOption configures a Net before its model loads.
type NetOption func(*netConfig)

type netConfig struct {
	fp16    bool
	threads int
}

// WithFP16 re-enables half-precision paths for models known to be FP16-safe.
func WithFP16() NetOption {
	return func(c *netConfig) { c.fp16 = true }
}

// WithThreads sets the CPU thread count for inference.
func WithThreads(n int) NetOption {
	return func(c *netConfig) { c.threads = n }
}

// NewNet loads a model from .param and .bin files on disk.
func NewNet(paramPath, binPath string, opts ...NetOption) (*Net, error) {
	// Route through the memory loader so options apply before load;
	// ncnn only honors options set prior to loading the graph.
	paramData, err := os.ReadFile(paramPath)
	if err != nil {
		return nil, fmt.Errorf("ncnn: read param: %w", err)
	}
	binData, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("ncnn: read bin: %w", err)
	}
	return NewNetFromMemory(paramData, binData, opts...)
}

// NewNetFromMemory loads a model from in-memory .param text and .bin bytes.
func NewNetFromMemory(paramData, binData []byte, opts ...NetOption) (*Net, error) {
	if len(paramData) == 0 {
		return nil, fmt.Errorf("ncnn: empty param data")
	}
	if len(binData) == 0 {
		return nil, fmt.Errorf("ncnn: empty bin data")
	}

	cfg := netConfig{threads: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	n := &Net{net: C.ncnn_net_create()}
	if n.net == nil {
		return nil, fmt.Errorf("ncnn: net_create failed")
	}

	opt := C.ncnn_option_create()
	fp16 := C.int(0)
	if cfg.fp16 {
		fp16 = 1
	}
	C.ncnn_option_set_use_fp16_packed(opt, fp16)
	C.ncnn_option_set_use_fp16_storage(opt, fp16)
	C.ncnn_option_set_use_fp16_arithmetic(opt, fp16)
	C.ncnn_option_set_num_threads(opt, C.int(cfg.threads))
	C.ncnn_net_set_option(n.net, opt)
	C.ncnn_option_destroy(opt)

	cParam := C.CString(string(paramData))
	defer C.free(unsafe.Pointer(cParam))
	if ret := C.ncnn_net_load_param_memory(n.net, cParam); ret != 0 {
		C.ncnn_net_destroy(n.net)
		return nil, fmt.Errorf("ncnn: load_param_memory: %d", ret)
	}

	// load_model_memory returns bytes consumed on success, negative on error.
	if ret := C.ncnn_net_load_model_memory(n.net, (*C.uchar)(unsafe.Pointer(&binData[0]))); ret < 0 {
		C.ncnn_net_destroy(n.net)
		return nil, fmt.Errorf("ncnn: load_model_memory: %d", ret)
	}

	runtime.SetFinalizer(n, (*Net).Close)
	return n, nil
}

// NewExtractor creates an inference session on this Net.
func (n *Net) NewExtractor() (*Extractor, error) {
	ex := C.ncnn_extractor_create(n.net)
	if ex == nil {
		return nil, fmt.Errorf("ncnn: extractor_create failed")
	}
	e := &Extractor{ex: ex}
	runtime.SetFinalizer(e, (*Extractor).Close)
	return e, nil
}

// Close releases the network. Safe to call more than once.
func (n *Net) Close() error {
	if n.net != nil {
		C.ncnn_net_destroy(n.net)
		n.net = nil
		runtime.SetFinalizer(n, nil)
	}
	return nil
}

// Extractor runs inference on a loaded Net.
type Extractor struct {
	ex C.ncnn_extractor_t
}

// SetInput binds a Mat to the named input blob.
func (e *Extractor) SetInput(name string, mat *Mat) error {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	if ret := C.ncnn_extractor_input(e.ex, cName, mat.mat); ret != 0 {
		return fmt.Errorf("ncnn: extractor_input %q: %d", name, ret)
	}
	return nil
}

// Extract runs inference and returns the named output blob.
// The caller must Close the returned Mat.
func (e *Extractor) Extract(name string) (*Mat, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var m C.ncnn_mat_t
	if ret := C.ncnn_extractor_extract(e.ex, cName, &m); ret != 0 {
		return nil, fmt.Errorf("ncnn: extractor_extract %q: %d", name, ret)
	}

	mat := &Mat{mat: m}
	runtime.SetFinalizer(mat, (*Mat).Close)
	return mat, nil
}

// Close releases the extractor. Safe to call more than once.
func (e *Extractor) Close() error {
	if e.ex != nil {
		C.ncnn_extractor_destroy(e.ex)
		e.ex = nil
		runtime.SetFinalizer(e, nil)
	}
	return nil
}

// Mat is an N-dimensional tensor backed by external float32 data.
type Mat struct {
	mat C.ncnn_mat_t
}

// NewMat1D creates a 1D Mat of w elements over data. The slice must stay
// valid for the Mat's lifetime.
func NewMat1D(data []float32) (*Mat, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ncnn: NewMat1D with empty data")
	}
	mat := C.ncnn_mat_create_external_1d(C.int(len(data)), unsafe.Pointer(&data[0]), nil)
	if mat == nil {
		return nil, fmt.Errorf("ncnn: mat_create_external_1d failed")
	}
	m := &Mat{mat: mat}
	runtime.SetFinalizer(m, (*Mat).Close)
	return m, nil
}

// NewMat2D creates an h-rows by w-cols Mat over data (row-major). The slice
// must stay valid for the Mat's lifetime.
func NewMat2D(w, h int, data []float32) (*Mat, error) {
	if len(data) < w*h {
		return nil, fmt.Errorf("ncnn: NewMat2D data too short: got %d, need %d", len(data), w*h)
	}
	if w*h == 0 {
		return nil, fmt.Errorf("ncnn: NewMat2D with empty shape")
	}
	mat := C.ncnn_mat_create_external_2d(C.int(w), C.int(h), unsafe.Pointer(&data[0]), nil)
	if mat == nil {
		return nil, fmt.Errorf("ncnn: mat_create_external_2d failed")
	}
	m := &Mat{mat: mat}
	runtime.SetFinalizer(m, (*Mat).Close)
	return m, nil
}

// W returns the first dimension.
func (m *Mat) W() int { return int(C.ncnn_mat_get_w(m.mat)) }

// H returns the second dimension.
func (m *Mat) H() int { return int(C.ncnn_mat_get_h(m.mat)) }

// C returns the channel dimension.
func (m *Mat) C() int { return int(C.ncnn_mat_get_c(m.mat)) }

// FloatData copies the Mat contents into a new float32 slice of W*H*C.
func (m *Mat) FloatData() []float32 {
	ptr := C.ncnn_mat_get_data(m.mat)
	if ptr == nil {
		return nil
	}
	n := m.W() * m.H() * m.C()
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	C.memcpy(unsafe.Pointer(&out[0]), ptr, C.size_t(n*4))
	return out
}

// Close releases the Mat. Safe to call more than once.
func (m *Mat) Close() error {
	if m.mat != nil {
		C.ncnn_mat_destroy(m.mat)
		m.mat = nil
		runtime.SetFinalizer(m, nil)
	}
	return nil
}
