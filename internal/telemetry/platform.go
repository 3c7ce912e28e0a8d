package telemetry

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// PlatformInfo holds privacy-safe platform information
type PlatformInfo struct {
	OS            string   `json:"os"`
	Architecture  string   `json:"arch"`
	NumCPU        int      `json:"num_cpu"`
	GoVersion     string   `json:"go_version"`
	CPUBrand      string   `json:"cpu_brand,omitempty"`
	CPUVendor     string   `json:"cpu_vendor,omitempty"`
	PhysicalCores int      `json:"physical_cores,omitempty"`
	LogicalCores  int      `json:"logical_cores,omitempty"`
	SIMD          []string `json:"simd,omitempty"`
}

// simdFeatures are the instruction set extensions that matter for sample
// processing, in the order they are reported
var simdFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE2, "sse2"},
	{cpuid.SSE4, "sse4.1"},
	{cpuid.AVX, "avx"},
	{cpuid.AVX2, "avx2"},
	{cpuid.FMA3, "fma3"},
	{cpuid.AVX512F, "avx512f"},
	{cpuid.ASIMD, "neon"},
}

// Platform gathers platform information. The CPU fields stay empty on
// hosts where cpuid cannot identify the processor.
func Platform() PlatformInfo {
	info := PlatformInfo{
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
		NumCPU:        runtime.NumCPU(),
		GoVersion:     runtime.Version(),
		CPUBrand:      cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
	}
	if cpuid.CPU.VendorID != cpuid.VendorUnknown {
		info.CPUVendor = cpuid.CPU.VendorID.String()
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			info.SIMD = append(info.SIMD, f.name)
		}
	}
	return info
}
