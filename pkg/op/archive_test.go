package op_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/cosmicwatch/stationcore/pkg/op"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4/vfst"
	"github.com/ulikunitz/xz"
)

type entry struct {
	name string
	body string
	dir  bool
	link string
}

func tarball(entries []entry) []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		h := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			h.Typeflag = tar.TypeDir
			h.Mode = 0755
			h.Size = 0
		case e.link != "":
			h.Typeflag = tar.TypeSymlink
			h.Linkname = e.link
			h.Mode = 0777
			h.Size = 0
		}
		Expect(tw.WriteHeader(h)).To(Succeed())
		if h.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			Expect(err).ToNot(HaveOccurred())
		}
	}
	Expect(tw.Close()).To(Succeed())
	return buf.Bytes()
}

func gzipped(data []byte) io.Reader {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	Expect(err).ToNot(HaveOccurred())
	Expect(gw.Close()).To(Succeed())
	return &buf
}

func xzed(data []byte) io.Reader {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	Expect(err).ToNot(HaveOccurred())
	_, err = xw.Write(data)
	Expect(err).ToNot(HaveOccurred())
	Expect(xw.Close()).To(Succeed())
	return &buf
}

var _ = Describe("archive extraction", func() {
	var entries []entry

	BeforeEach(func() {
		entries = []entry{
			{name: "station-1.4.2/", dir: true},
			{name: "station-1.4.2/README.md", body: "readme"},
			{name: "station-1.4.2/firmware/", dir: true},
			{name: "station-1.4.2/firmware/daq/daq.c", body: "int main(){}"},
			{name: "station-1.4.2/firmware/hv/Makefile", body: "all:"},
			{name: "station-1.4.2/bmp280_log.py", body: "print()"},
			{name: "station-1.4.2/docs/bmp280_log.py.md", body: "doc"},
		}
	})

	for _, codec := range []struct {
		name string
		wrap func([]byte) io.Reader
	}{{"gzip", gzipped}, {"xz", xzed}, {"plain", func(b []byte) io.Reader { return bytes.NewReader(b) }}} {
		codec := codec
		It("extracts only the requested subpaths from "+codec.name+" archives", func() {
			fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{
				"/home/cosmic/firmware/stale.txt": "old",
				"/home/cosmic/keep.txt":           "mine",
			})
			Expect(err).ToNot(HaveOccurred())
			defer cleanup()

			err = op.ExtractSubpaths(fs, codec.wrap(tarball(entries)), "/home/cosmic", 1, []string{"firmware", "bmp280_log.py"})
			Expect(err).ToNot(HaveOccurred())

			data, err := fs.ReadFile("/home/cosmic/firmware/daq/daq.c")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("int main(){}"))
			_, err = fs.Stat("/home/cosmic/firmware/hv/Makefile")
			Expect(err).ToNot(HaveOccurred())
			_, err = fs.Stat("/home/cosmic/bmp280_log.py")
			Expect(err).ToNot(HaveOccurred())

			_, err = fs.Stat("/home/cosmic/README.md")
			Expect(os.IsNotExist(err)).To(BeTrue())
			_, err = fs.Stat("/home/cosmic/docs")
			Expect(os.IsNotExist(err)).To(BeTrue())
			_, err = fs.Stat("/home/cosmic/firmware/stale.txt")
			Expect(os.IsNotExist(err)).To(BeTrue())
			_, err = fs.Stat("/home/cosmic/keep.txt")
			Expect(err).ToNot(HaveOccurred())
			_, err = fs.Stat("/home/cosmic/" + op.StagingDir)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	}

	Context("with a previous tree in place", func() {
		var fs *vfst.TestFS
		var cleanup func()

		BeforeEach(func() {
			var err error
			fs, cleanup, err = vfst.NewTestFS(map[string]interface{}{
				"/home/cosmic/firmware/daq/daq": "built",
				"/home/cosmic/bmp280_log.py":    "old logger",
			})
			Expect(err).ToNot(HaveOccurred())
		})
		AfterEach(func() {
			cleanup()
		})

		expectOldTree := func() {
			data, err := fs.ReadFile("/home/cosmic/firmware/daq/daq")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("built"))
			data, err = fs.ReadFile("/home/cosmic/bmp280_log.py")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("old logger"))
			_, err = fs.Stat("/home/cosmic/" + op.StagingDir)
			Expect(os.IsNotExist(err)).To(BeTrue())
		}

		It("keeps it when the stream is cut short", func() {
			entries = append(entries, entry{name: "station-1.4.2/firmware/daq/big.bin", body: strings.Repeat("0123456789abcdef", 4096)})
			data, err := io.ReadAll(gzipped(tarball(entries)))
			Expect(err).ToNot(HaveOccurred())

			err = op.ExtractSubpaths(fs, bytes.NewReader(data[:len(data)/2]), "/home/cosmic", 1, []string{"firmware", "bmp280_log.py"})
			Expect(err).To(HaveOccurred())
			expectOldTree()
		})

		It("keeps it when a subpath is missing", func() {
			err := op.ExtractSubpaths(fs, gzipped(tarball(entries[:4])), "/home/cosmic", 1, []string{"firmware", "bmp280_log.py"})
			Expect(err).To(HaveOccurred())
			expectOldTree()
		})

		It("rejects links leaving the subpath", func() {
			for _, link := range []string{"/etc/passwd", "../../../../etc", "../../bmp280_log.py"} {
				bad := append(append([]entry{}, entries...), entry{name: "station-1.4.2/firmware/daq/out", link: link})
				err := op.ExtractSubpaths(fs, gzipped(tarball(bad)), "/home/cosmic", 1, []string{"firmware", "bmp280_log.py"})
				Expect(err).To(HaveOccurred(), link)
				Expect(err.Error()).To(ContainSubstring("invalid symlink"), link)
				expectOldTree()
			}
		})

		It("keeps links inside the subpath", func() {
			entries = append(entries, entry{name: "station-1.4.2/firmware/hv/daq.c", link: "../daq/daq.c"})
			err := op.ExtractSubpaths(fs, gzipped(tarball(entries)), "/home/cosmic", 1, []string{"firmware", "bmp280_log.py"})
			Expect(err).ToNot(HaveOccurred())
			data, err := fs.ReadFile("/home/cosmic/firmware/hv/daq.c")
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("int main(){}"))
			_, err = fs.Stat("/home/cosmic/firmware/daq/daq")
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	It("fails when a subpath is missing", func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{"/home/cosmic": &vfst.Dir{Perm: 0755}})
		Expect(err).ToNot(HaveOccurred())
		defer cleanup()

		err = op.ExtractSubpaths(fs, gzipped(tarball(entries[:4])), "/home/cosmic", 1, []string{"firmware", "bmp280_log.py"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("bmp280_log.py"))
	})

	It("fails on corrupted input", func() {
		fs, cleanup, err := vfst.NewTestFS(map[string]interface{}{"/home/cosmic": &vfst.Dir{Perm: 0755}})
		Expect(err).ToNot(HaveOccurred())
		defer cleanup()

		err = op.ExtractSubpaths(fs, bytes.NewReader([]byte{0x1f, 0x8b, 0x00}), "/home/cosmic", 1, []string{"firmware"})
		Expect(err).To(HaveOccurred())
	})
})
