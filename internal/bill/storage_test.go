package bill

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("writes the file under the owner's folder", func() {
			path, err := storage.Save("owner-1", "bill.jpg", []byte("image data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join("owner-1", "bill.jpg")))

			written, readErr := os.ReadFile(filepath.Join(tmpDir, "owner-1", "bill.jpg"))
			Expect(readErr).NotTo(HaveOccurred())
			Expect(string(written)).To(Equal("image data"))
		})
	})

	Describe("Get", func() {
		BeforeEach(func() {
			_, err := storage.Save("owner-1", "bill.jpg", []byte("image data"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the stored bytes", func() {
			data, err := storage.Get(filepath.Join("owner-1", "bill.jpg"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("image data"))
		})

		It("errors for a missing file", func() {
			_, err := storage.Get("owner-1/nope.jpg")
			Expect(err).To(HaveOccurred())
		})

		It("refuses paths that escape the storage root", func() {
			_, err := storage.Get("../../etc/passwd")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			_, err := storage.Save("owner-1", "bill.jpg", []byte("image data"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes the file", func() {
			Expect(storage.Delete(filepath.Join("owner-1", "bill.jpg"))).NotTo(HaveOccurred())
			_, err := os.Stat(filepath.Join(tmpDir, "owner-1", "bill.jpg"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("errors for a missing file", func() {
			Expect(storage.Delete("owner-1/nope.jpg")).To(HaveOccurred())
		})
	})
})
