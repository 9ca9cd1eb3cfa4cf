package passes

import "github.com/mna/bfcore/ir"

// MergeConditionalFields implements spec.md §4.J. lower.lowerFieldDefine
// interns a field's DEFINE_FIELD under its source name, so two FieldDecls
// sharing a name inside one format (the "same field, different type per
// condition" pattern) already land on the same Ident; this pass finds
// those adjacent CONDITIONAL_FIELD runs and consolidates them into one
// MERGED_CONDITIONAL_FIELD carrying the original conditional refs plus a
// MergeMode describing how the merged type was derived: every alternative
// shares one Storages shape verbatim (MergeStrictCommonType), the
// alternatives widen to a common numeric Storages shape
// (MergeCommonType), or no common shape exists and a tagged StVariant is
// synthesized (MergeVariant).
func MergeConditionalFields(mod *ir.Module) error {
	groups := groupConditionalFields(mod)
	if len(groups) == 0 {
		return nil
	}

	var newCode []ir.Code
	consumed := make(map[int]bool)
	for _, g := range groups {
		for _, idx := range g.condIdx {
			consumed[idx] = true
		}
		for _, idx := range g.fieldIdx[1:] {
			consumed[idx] = true
			if idx+2 < len(mod.Code) && mod.Code[idx+2].Op == ir.END_FIELD {
				consumed[idx+2] = true
			}
		}
	}

	mergedAt := make(map[int]mergeGroup)
	for _, g := range groups {
		mergedAt[g.fieldIdx[0]] = g
	}

	for i, c := range mod.Code {
		if g, ok := mergedAt[i]; ok {
			newCode = append(newCode, c)
			mode, shape := mergeType(mod, g)
			var refs []ir.ObjectID
			for _, ci := range g.condIdx {
				refs = append(refs, mod.Code[ci].Left)
			}
			merged := ir.Code{
				Op:        ir.MERGED_CONDITIONAL_FIELD,
				Ref:       c.Ident,
				MergeMode: mode,
				Param:     refs,
				Type:      mod.GetStorageRef(shape),
			}
			newCode = append(newCode, merged)
			continue
		}
		if consumed[i] {
			continue
		}
		newCode = append(newCode, c)
	}
	mod.Code = newCode
	return nil
}

type mergeGroup struct {
	ident    ir.ObjectID
	fieldIdx []int // DEFINE_FIELD indices sharing ident, in order
	condIdx  []int // matching CONDITIONAL_FIELD indices, same order
}

// groupConditionalFields scans for runs of (DEFINE_FIELD, CONDITIONAL_FIELD,
// END_FIELD) triples sharing the same field Ident within one format body;
// a run of length 1 (a conditional field with no sibling alternative) is
// left untouched, since there's nothing to merge it with.
func groupConditionalFields(mod *ir.Module) []mergeGroup {
	byIdent := make(map[ir.ObjectID]*mergeGroup)
	var order []ir.ObjectID
	for i, c := range mod.Code {
		if c.Op != ir.DEFINE_FIELD {
			continue
		}
		condIdx := -1
		if i+1 < len(mod.Code) && mod.Code[i+1].Op == ir.CONDITIONAL_FIELD && mod.Code[i+1].Ref == c.Ident {
			condIdx = i + 1
		}
		if condIdx < 0 {
			continue
		}
		g, ok := byIdent[c.Ident]
		if !ok {
			g = &mergeGroup{ident: c.Ident}
			byIdent[c.Ident] = g
			order = append(order, c.Ident)
		}
		g.fieldIdx = append(g.fieldIdx, i)
		g.condIdx = append(g.condIdx, condIdx)
	}
	var out []mergeGroup
	for _, id := range order {
		g := byIdent[id]
		if len(g.fieldIdx) > 1 {
			out = append(out, *g)
		}
	}
	return out
}

// mergeType decides spec.md §4.J's MergeMode for one group of alternative
// field definitions: identical shapes merge strictly, shapes that are all
// numeric pick the widest as a common type, and anything else becomes a
// tagged StVariant listing every alternative.
func mergeType(mod *ir.Module, g mergeGroup) (ir.MergeMode, ir.Storages) {
	var shapes []ir.Storages
	for _, idx := range g.fieldIdx {
		ref := mod.Code[idx].Type
		if s, ok := mod.GetStorage(ref); ok {
			shapes = append(shapes, s)
		}
	}
	if len(shapes) == 0 {
		return ir.MergeVariant, ir.Storages{{Tag: ir.StVariant, Ref: g.ident}}
	}

	allSame := true
	for _, s := range shapes[1:] {
		if !s.Equal(shapes[0]) {
			allSame = false
			break
		}
	}
	if allSame {
		return ir.MergeStrictCommonType, shapes[0]
	}

	allNumeric := true
	widest := uint32(0)
	tag := shapes[0][0].Tag
	for _, s := range shapes {
		t := s[0].Tag
		if t != ir.StUint && t != ir.StInt && t != ir.StFloat {
			allNumeric = false
			break
		}
		if t != tag {
			// mixed signedness/kind still common-types to the widest, biased
			// toward StInt/StFloat for sign-safety.
			if tag == ir.StUint {
				tag = t
			}
		}
		if s[0].Size > widest {
			widest = s[0].Size
		}
	}
	if allNumeric {
		return ir.MergeCommonType, ir.Storages{{Tag: tag, Size: widest}}
	}

	variant := ir.Storages{{Tag: ir.StVariant, Ref: g.ident}}
	variant = append(variant, flattenAll(shapes)...)
	return ir.MergeVariant, variant
}

func flattenAll(shapes []ir.Storages) ir.Storages {
	var out ir.Storages
	for _, s := range shapes {
		out = append(out, s...)
	}
	return out
}
