package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mountinfoHeader = `22 28 0:21 / /sys rw,nosuid,nodev,noexec,relatime shared:7 - sysfs sysfs rw
23 28 0:6 / /proc rw,nosuid,nodev,noexec,relatime shared:13 - proc proc rw
`

func writeMountinfo(t *testing.T, dir string, extraLine string) string {
	t.Helper()
	path := filepath.Join(dir, "mountinfo")
	content := mountinfoHeader + extraLine
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadMountpoints_ParsesMountColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeMountinfo(t, dir, "24 22 0:22 / /mnt/usb rw,relatime shared:14 - vfat /dev/sdb1 rw\n")

	mounts, err := readMountpoints(path)
	require.NoError(t, err)
	assert.True(t, mounts["/sys"])
	assert.True(t, mounts["/proc"])
	assert.True(t, mounts["/mnt/usb"])
}

func TestUnescapeMountinfo_DecodesOctalSpace(t *testing.T) {
	assert.Equal(t, "/mnt/my drive", unescapeMountinfo(`/mnt/my\040drive`))
}

type recordingHandler struct {
	mu     sync.Mutex
	events []MountEvent
}

func (h *recordingHandler) HandleMountEvent(event MountEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestWatcher_DetectsAddedMountpoint(t *testing.T) {
	dir := t.TempDir()
	path := writeMountinfo(t, dir, "")

	handler := &recordingHandler{}
	w := NewWatcher(handler, 20*time.Millisecond, WithMountinfoPath(path))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	defer cancel()

	writeMountinfo(t, dir, "24 22 0:22 / /mnt/usb rw,relatime shared:14 - vfat /dev/sdb1 rw\n")

	require.Eventually(t, func() bool { return handler.count() > 0 }, time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Contains(t, handler.events[0].Added, "/mnt/usb")
}
