package serialize

import (
	"bufio"
	"bytes"
	"io"

	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// magic and version identify the container format of spec.md §6.3.
var magic = [4]byte{'B', 'F', 'C', 'R'}

const version = 1

// Write serializes mod to w as the fixed-header, seven-section container
// of spec.md §6.3.
func Write(w io.Writer, mod *ir.Module) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return wrapWriteErr(err)
	}
	if err := bw.WriteByte(version); err != nil {
		return wrapWriteErr(err)
	}

	if err := writeIdentTable(bw, mod); err != nil {
		return err
	}
	if err := writeStringTable(bw, mod); err != nil {
		return err
	}
	if err := writeMetadataTable(bw, mod); err != nil {
		return err
	}
	if err := writeStorageTable(bw, mod); err != nil {
		return err
	}
	if err := writeCodeSection(bw, mod); err != nil {
		return err
	}
	if err := writeIdentRanges(bw, mod); err != nil {
		return err
	}
	if err := writePrograms(bw, mod); err != nil {
		return err
	}
	return wrapWriteErr(bw.Flush())
}

// ToBytes is a convenience wrapper for callers (the CLI's --base64 path)
// that need the serialized form as a byte slice rather than streamed to
// a writer.
func ToBytes(mod *ir.Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, mod); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeIdentTable(w *bufio.Writer, mod *ir.Module) error {
	if err := wrapWriteErr(WriteVarint(w, uint64(mod.IdentCount()))); err != nil {
		return err
	}
	var firstErr error
	mod.EachIdent(func(id ir.ObjectID, name string) {
		if firstErr != nil {
			return
		}
		if err := WriteVarint(w, uint64(id)); err != nil {
			firstErr = wrapWriteErr(err)
			return
		}
		if err := WriteString(w, name); err != nil {
			firstErr = wrapWriteErr(err)
		}
	})
	return firstErr
}

func writeStringTable(w *bufio.Writer, mod *ir.Module) error {
	if err := wrapWriteErr(WriteVarint(w, uint64(mod.StringCount()))); err != nil {
		return err
	}
	var firstErr error
	mod.EachString(func(id ir.ObjectID, s string) {
		if firstErr != nil {
			return
		}
		if err := WriteVarint(w, uint64(id)); err != nil {
			firstErr = wrapWriteErr(err)
			return
		}
		if err := WriteString(w, s); err != nil {
			firstErr = wrapWriteErr(err)
		}
	})
	return firstErr
}

func writeMetadataTable(w *bufio.Writer, mod *ir.Module) error {
	if err := wrapWriteErr(WriteVarint(w, uint64(mod.MetadataCount()))); err != nil {
		return err
	}
	var firstErr error
	mod.EachMetadata(func(id ir.ObjectID, s string) {
		if firstErr != nil {
			return
		}
		if err := WriteVarint(w, uint64(id)); err != nil {
			firstErr = wrapWriteErr(err)
			return
		}
		if err := WriteString(w, s); err != nil {
			firstErr = wrapWriteErr(err)
		}
	})
	return firstErr
}

func writeStorageTable(w *bufio.Writer, mod *ir.Module) error {
	refs := mod.StorageRefs()
	if err := wrapWriteErr(WriteVarint(w, uint64(len(refs)))); err != nil {
		return err
	}
	for _, ref := range refs {
		shape, _ := mod.GetStorage(ref)
		if err := wrapWriteErr(WriteVarint(w, uint64(ref))); err != nil {
			return err
		}
		if err := wrapWriteErr(WriteVarint(w, uint64(len(shape)))); err != nil {
			return err
		}
		for _, st := range shape {
			if err := writeStorage(w, st); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStorage(w *bufio.Writer, st ir.Storage) error {
	if err := wrapWriteErr(w.WriteByte(byte(st.Tag))); err != nil {
		return err
	}
	if hasSize, hasRef := storageShape(st.Tag); hasSize || hasRef {
		if hasSize {
			if err := wrapWriteErr(WriteVarint(w, uint64(st.Size))); err != nil {
				return err
			}
		}
		if hasRef {
			if err := wrapWriteErr(WriteVarint(w, uint64(st.Ref))); err != nil {
				return err
			}
		}
	}
	return nil
}

// storageShape reports which optional fields a Storage entry of this tag
// carries, per the per-tag field list documented on ir.Storage.
func storageShape(tag ir.StorageTag) (hasSize, hasRef bool) {
	switch tag {
	case ir.StUint, ir.StInt, ir.StFloat, ir.StArray:
		return true, false
	case ir.StStructRef, ir.StRecursiveStructRef, ir.StEnum, ir.StVariant:
		return false, true
	default:
		return false, false
	}
}

func writeCodeSection(w *bufio.Writer, mod *ir.Module) error {
	if err := wrapWriteErr(WriteVarint(w, uint64(len(mod.Code)))); err != nil {
		return err
	}
	for i := range mod.Code {
		if err := writeCode(w, &mod.Code[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeIdentRanges(w *bufio.Writer, mod *ir.Module) error {
	if err := wrapWriteErr(WriteVarint(w, uint64(len(mod.IdentToRanges)))); err != nil {
		return err
	}
	for _, r := range mod.IdentToRanges {
		if err := wrapWriteErr(WriteVarint(w, uint64(r.Ident))); err != nil {
			return err
		}
		if err := wrapWriteErr(WriteVarint(w, uint64(r.Range.Start))); err != nil {
			return err
		}
		if err := wrapWriteErr(WriteVarint(w, uint64(r.Range.End))); err != nil {
			return err
		}
	}
	return nil
}

func writePrograms(w *bufio.Writer, mod *ir.Module) error {
	if err := wrapWriteErr(WriteVarint(w, uint64(len(mod.Programs)))); err != nil {
		return err
	}
	for _, p := range mod.Programs {
		if err := wrapWriteErr(WriteVarint(w, uint64(p.Start))); err != nil {
			return err
		}
		if err := wrapWriteErr(WriteVarint(w, uint64(p.End))); err != nil {
			return err
		}
	}
	return nil
}

// Read deserializes a container previously written by Write, rebuilding
// a Module whose tables and id allocator are consistent for further
// inspection (e.g. by a debug printer); it is not run back through the
// transformation pipeline.
func Read(r io.Reader) (*ir.Module, error) {
	br := bufio.NewReader(r)
	var hdr [4]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, wrapReadErr(err)
	}
	if hdr != magic {
		return nil, diag.SerializationFailure(errBadMagic)
	}
	v, err := br.ReadByte()
	if err != nil {
		return nil, wrapReadErr(err)
	}
	if v != version {
		return nil, diag.SerializationFailure(errBadVersion)
	}

	mod := ir.NewModule()
	var maxID uint64

	n, err := ReadVarint(br)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	for i := uint64(0); i < n; i++ {
		id, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		name, err := ReadString(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		mod.PutIdent(ir.ObjectID(id), name)
		maxID = maxOf(maxID, id)
	}

	n, err = ReadVarint(br)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	for i := uint64(0); i < n; i++ {
		id, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		s, err := ReadString(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		mod.PutString(ir.ObjectID(id), s)
		maxID = maxOf(maxID, id)
	}

	n, err = ReadVarint(br)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	for i := uint64(0); i < n; i++ {
		id, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		s, err := ReadString(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		mod.PutMetadata(ir.ObjectID(id), s)
		maxID = maxOf(maxID, id)
	}

	n, err = ReadVarint(br)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	for i := uint64(0); i < n; i++ {
		ref, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		count, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		shape := make(ir.Storages, count)
		for j := range shape {
			st, err := readStorage(br)
			if err != nil {
				return nil, err
			}
			shape[j] = st
			maxID = maxOf(maxID, uint64(st.Ref))
		}
		mod.PutStorage(ir.StorageRef(ref), shape)
	}

	n, err = ReadVarint(br)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	mod.Code = make([]ir.Code, n)
	for i := range mod.Code {
		c, err := readCode(br)
		if err != nil {
			return nil, err
		}
		mod.Code[i] = c
		maxID = maxOf(maxID, codeMaxID(&c))
	}

	n, err = ReadVarint(br)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	mod.IdentToRanges = make([]ir.IdentRange, n)
	for i := range mod.IdentToRanges {
		id, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		start, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		end, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		mod.IdentToRanges[i] = ir.IdentRange{Ident: ir.ObjectID(id), Range: ir.Range{Start: int(start), End: int(end)}}
		maxID = maxOf(maxID, id)
	}

	n, err = ReadVarint(br)
	if err != nil {
		return nil, wrapReadErr(err)
	}
	mod.Programs = make([]ir.Range, n)
	for i := range mod.Programs {
		start, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		end, err := ReadVarint(br)
		if err != nil {
			return nil, wrapReadErr(err)
		}
		mod.Programs[i] = ir.Range{Start: int(start), End: int(end)}
	}

	mod.Reserve(maxID)
	mod.RebuildIdentIndex()
	return mod, nil
}

func readStorage(r *bufio.Reader) (ir.Storage, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return ir.Storage{}, wrapReadErr(err)
	}
	tag := ir.StorageTag(tagByte)
	st := ir.Storage{Tag: tag}
	hasSize, hasRef := storageShape(tag)
	if hasSize {
		n, err := ReadVarint(r)
		if err != nil {
			return st, wrapReadErr(err)
		}
		st.Size = uint32(n)
	}
	if hasRef {
		n, err := ReadVarint(r)
		if err != nil {
			return st, wrapReadErr(err)
		}
		st.Ref = ir.ObjectID(n)
	}
	return st, nil
}

func codeMaxID(c *ir.Code) uint64 {
	max := uint64(c.Ident)
	for _, id := range []ir.ObjectID{c.Ref, c.Left, c.Right, c.Belong, c.Fallback, c.Metadata, c.ArrayLength, c.StringRef, c.Endian.DynamicRef} {
		if uint64(id) > max {
			max = uint64(id)
		}
	}
	return max
}

func maxOf(a, b uint64) uint64 {
	if b > a {
		return b
	}
	return a
}

var (
	errBadMagic   = errBadMagicErr{}
	errBadVersion = errBadVersionErr{}
)

type errBadMagicErr struct{}

func (errBadMagicErr) Error() string { return "not a bfcore binary module (bad magic)" }

type errBadVersionErr struct{}

func (errBadVersionErr) Error() string { return "unsupported binary module version" }
