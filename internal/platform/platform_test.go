package platform

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		procVersion string
		wslEnv      bool
		want        Kind
	}{
		{"darwin", "darwin", "", false, MacOS},
		{"windows", "windows", "", false, Windows},
		{"native linux", "linux", "Linux version 6.8.0-45-generic (gcc 13.2.0)", false, Linux},
		{"wsl2 kernel", "linux", "Linux version 5.15.153.1-microsoft-standard-WSL2", false, WSL},
		{"wsl1 kernel", "linux", "Linux version 4.4.0-19041-Microsoft", false, WSL},
		{"wsl env only", "linux", "", true, WSL},
		{"freebsd", "freebsd", "", false, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.goos, tt.procVersion, tt.wslEnv))
		})
	}
}

func TestDetectIsStable(t *testing.T) {
	p := Detect()
	assert.NotEmpty(t, p)
	assert.Equal(t, p, Detect())
	if runtime.GOOS == "darwin" {
		assert.Equal(t, MacOS, p)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "macOS", MacOS.String())
	assert.Equal(t, "WSL", WSL.String())
	assert.Equal(t, "Unknown", Kind("plan9").String())
}

const sampleMounts = `/dev/sdb / ext4 rw,relatime 0 0
C:\134 /mnt/c 9p rw,noatime 0 0
server:/export /home/nfs nfs4 rw 0 0
host:/ /home/remote fuse.sshfs rw 0 0
tmpfs /home/nfsish tmpfs rw 0 0
`

func TestMountFSType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/dev/.agent-watch/config.toml", "ext4"},
		{"/mnt/c/Users/dev/config.toml", "9p"},
		{"/home/nfs/dev/config.toml", "nfs4"},
		{"/home/nfsish/config.toml", "tmpfs"},
		{"/home/remote/config.toml", "fuse.sshfs"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mountFSType(sampleMounts, tt.path), tt.path)
	}
}

func TestWarningFor(t *testing.T) {
	assert.Empty(t, warningFor("ext4"))
	assert.Empty(t, warningFor(""))
	assert.Contains(t, warningFor("9p"), "restart to apply")
	assert.Contains(t, warningFor("nfs"), "NFS")
	assert.Contains(t, warningFor("cifs"), "CIFS")
	assert.Contains(t, warningFor("fuse.sshfs"), "SSHFS")
}
