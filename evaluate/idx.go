package evaluate

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// DefaultClasses is the number of label classes in MNIST style datasets.
const DefaultClasses = 10

const idxUnsignedByte = 0x08

// LoadIDX reads an IDX image file and its label file, either of which may
// be gzipped. Pixels are scaled to [0,1] and labels one-hot encoded over
// classes, DefaultClasses if zero.
func LoadIDX(images, labels string, classes int) (*Dataset, error) {
	if classes == 0 {
		classes = DefaultClasses
	}
	pixels, dims, err := readIDXFile(images)
	if err != nil {
		return nil, err
	}
	if len(dims) < 2 {
		return nil, fmt.Errorf("%s: expected an image file, got %d dimensions", images, len(dims))
	}
	values, ldims, err := readIDXFile(labels)
	if err != nil {
		return nil, err
	}
	if len(ldims) != 1 {
		return nil, fmt.Errorf("%s: expected a label file, got %d dimensions", labels, len(ldims))
	}
	if ldims[0] != dims[0] {
		return nil, fmt.Errorf("%d images and %d labels", dims[0], ldims[0])
	}

	n := dims[0]
	size := len(pixels) / max(n, 1)
	ds := &Dataset{X: make([][]float64, n), Y: make([][]float64, n)}
	for i := 0; i < n; i++ {
		x := make([]float64, size)
		for j, p := range pixels[i*size : (i+1)*size] {
			x[j] = float64(p) / 255
		}
		label := int(values[i])
		if label >= classes {
			return nil, fmt.Errorf("%s: label %d of sample %d is not below %d", labels, label, i, classes)
		}
		y := make([]float64, classes)
		y[label] = 1
		ds.X[i], ds.Y[i] = x, y
	}
	return ds, nil
}

func readIDXFile(path string) ([]byte, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	data, dims, err := readIDX(f)
	if err != nil {
		return nil, nil, errors.Wrap(err, path)
	}
	return data, dims, nil
}

// readIDX decodes unsigned byte IDX data, transparently gunzipping it.
func readIDX(r io.Reader) ([]byte, []int, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		defer gz.Close()
		br = bufio.NewReader(gz)
	}

	var header [4]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, nil, errors.Wrap(err, "read header")
	}
	if header[0] != 0 || header[1] != 0 {
		return nil, nil, errors.New("not an IDX file")
	}
	if header[2] != idxUnsignedByte {
		return nil, nil, fmt.Errorf("unsupported IDX element type 0x%02x", header[2])
	}
	dims := make([]int, header[3])
	total := 1
	for i := range dims {
		var d uint32
		if err := binary.Read(br, binary.BigEndian, &d); err != nil {
			return nil, nil, errors.Wrap(err, "read dimensions")
		}
		dims[i] = int(d)
		total *= dims[i]
	}
	data := make([]byte, total)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, nil, errors.Wrap(err, "read data")
	}
	return data, dims, nil
}

// WriteIDX encodes unsigned byte data with the given dimensions.
func WriteIDX(w io.Writer, data []byte, dims ...int) error {
	header := []byte{0, 0, idxUnsignedByte, byte(len(dims))}
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, d := range dims {
		if err := binary.Write(w, binary.BigEndian, uint32(d)); err != nil {
			return err
		}
	}
	_, err := w.Write(data)
	return err
}
