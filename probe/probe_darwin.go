//go:build darwin

package probe

/*
#include <mach/mach.h>
#include <mach/mach_vm.h>
#include <sys/sysctl.h>
#include <stdlib.h>
#include <string.h>

// list_pids populates buf with up to max kinfo_proc entries, stores the
// number written in *outCount, and returns 0, or -1 on failure.
static int list_pids(struct kinfo_proc *buf, size_t max, size_t *outCount) {
	int mib[4] = {CTL_KERN, KERN_PROC, KERN_PROC_ALL, 0};
	size_t size = max * sizeof(struct kinfo_proc);
	if (sysctl(mib, 4, buf, &size, NULL, 0) < 0) {
		return -1;
	}
	*outCount = size / sizeof(struct kinfo_proc);
	return 0;
}

static int required_pid_buffer_count() {
	int mib[4] = {CTL_KERN, KERN_PROC, KERN_PROC_ALL, 0};
	size_t size = 0;
	if (sysctl(mib, 4, NULL, &size, NULL, 0) < 0) {
		return -1;
	}
	return (int)(size / sizeof(struct kinfo_proc)) + 32;
}

static const char *proc_name(struct kinfo_proc *p) {
	return p->kp_proc.p_comm;
}

static int proc_pid(struct kinfo_proc *p) {
	return p->kp_proc.p_pid;
}

static kern_return_t attach_task(pid_t pid, task_t *out) {
	return task_for_pid(mach_task_self(), pid, out);
}

static kern_return_t region_at(task_t task, mach_vm_address_t *addr, mach_vm_size_t *size,
                                unsigned int *protection) {
	vm_region_basic_info_data_64_t info;
	mach_msg_type_number_t count = VM_REGION_BASIC_INFO_COUNT_64;
	mach_port_t objName = MACH_PORT_NULL;
	kern_return_t kr = mach_vm_region(task, addr, size, VM_REGION_BASIC_INFO_64,
	                                   (vm_region_info_t)&info, &count, &objName);
	if (kr == KERN_SUCCESS) {
		*protection = info.protection;
	}
	return kr;
}

static kern_return_t do_read(task_t task, mach_vm_address_t addr, void *dst, mach_vm_size_t size) {
	mach_vm_size_t outSize = 0;
	return mach_vm_read_overwrite(task, addr, size, (mach_vm_address_t)dst, &outSize);
}

static kern_return_t do_write(task_t task, mach_vm_address_t addr, void *src, mach_vm_size_t size) {
	return mach_vm_write(task, addr, (vm_offset_t)src, (mach_msg_type_number_t)size);
}
*/
import "C"

import (
	"unsafe"
)

const (
	vmProtRead  = 0x1
	vmProtWrite = 0x2
)

type darwinProbe struct {
	task C.task_t
}

func newPlatformProbe() Probe {
	return &darwinProbe{}
}

// FindProcess enumerates all processes via the KERN_PROC_ALL sysctl and
// matches the BSD short name exactly.
func (p *darwinProbe) FindProcess(names []string) (int, bool) {
	count := int(C.required_pid_buffer_count())
	if count <= 0 {
		return 0, false
	}

	buf := make([]C.struct_kinfo_proc, count)
	var actual C.size_t
	if C.list_pids(&buf[0], C.size_t(count), &actual) < 0 {
		return 0, false
	}

	for i := 0; i < int(actual); i++ {
		name := C.GoString(C.proc_name(&buf[i]))
		for _, want := range names {
			if MatchName("darwin", name, want) {
				return int(C.proc_pid(&buf[i])), true
			}
		}
	}
	return 0, false
}

// EnumerateRegions requires task_for_pid (root or the debugging
// entitlement) and walks mach_vm_region until it is exhausted, keeping
// regions with both VM_PROT_READ and VM_PROT_WRITE set.
func (p *darwinProbe) EnumerateRegions(pid int) ([]Region, bool) {
	var task C.task_t
	if kr := C.attach_task(C.pid_t(pid), &task); kr != C.KERN_SUCCESS {
		return nil, false
	}
	p.task = task

	var regions []Region
	var addr C.mach_vm_address_t
	for {
		var size C.mach_vm_size_t
		var protection C.uint
		kr := C.region_at(task, &addr, &size, &protection)
		if kr != C.KERN_SUCCESS {
			break
		}

		if protection&vmProtRead != 0 && protection&vmProtWrite != 0 {
			regions = append(regions, Region{Base: uint64(addr), Size: uint64(size)})
		}
		addr += C.mach_vm_address_t(size)
	}
	return regions, true
}

func (p *darwinProbe) Read(hostAddr uint64, buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	kr := C.do_read(p.task, C.mach_vm_address_t(hostAddr), unsafe.Pointer(&buf[0]), C.mach_vm_size_t(len(buf)))
	return kr == C.KERN_SUCCESS
}

func (p *darwinProbe) Write(hostAddr uint64, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	kr := C.do_write(p.task, C.mach_vm_address_t(hostAddr), unsafe.Pointer(&data[0]), C.mach_vm_size_t(len(data)))
	return kr == C.KERN_SUCCESS
}

func (p *darwinProbe) ReleaseHandles() {
	if p.task != 0 {
		C.mach_port_deallocate(C.mach_task_self_, C.mach_port_name_t(p.task))
		p.task = 0
	}
}
