package ast

// Kind tags a Node. The set is closed: every consumer switches over it.
type Kind uint8

const (
	KindInvalid Kind = iota

	// контейнеры списков инструкций
	KindProgram
	KindBlock

	// инструкции
	KindExprStmt    // expression; children: expr [, modifier]
	KindModifier    // postfix "if/unless/while/until/for COND"; Text = keyword
	KindStmtGroup   // statements sharing a line with pending heredoc bodies
	KindSubDecl     // sub NAME [sig] BLOCK; Text = name
	KindSignature   // "(...)" after a sub name; Text = raw source
	KindPackageDecl // package NAME [VERSION] [BLOCK]; Text = name
	KindUseDecl     // use/no MODULE [LIST]; Text = "use"/"no"
	KindIf          // if/unless; Text = keyword; children: cond, block, elsif*, else?
	KindElsif       // children: cond, block
	KindElse        // children: block
	KindWhile       // while/until; Text = keyword; children: cond?, block [, continue block]
	KindForC        // for (init; cond; step) BLOCK
	KindForeach     // foreach [my $v] (LIST) BLOCK
	KindLoopCtl     // last/next/redo [LABEL]; Text = keyword
	KindLabeled     // LABEL: stmt; Text = label
	KindDataSection // __END__ / __DATA__ and the rest of the file

	// выражения
	KindVarDecl    // my/our/local/state; Text = keyword; children: var | list
	KindVariable   // $x @x %x $#x; Text = source text
	KindName       // bareword / package name
	KindNumber     // Text = literal
	KindString     // '...', "...", `...`
	KindQuoteLike  // q qq qw qx <FH>
	KindRegex      // m// qr// /.../
	KindSubst      // s///
	KindTranslit   // tr/// y///
	KindHeredoc    // <<LABEL declaration; Heredoc payload
	KindHeredocBody
	KindBinary  // Text = operator
	KindLogical // && || // and or xor; Text = operator
	KindAssign  // Text = operator
	KindTernary // cond, then, else
	KindRange   // .. ...
	KindUnary   // prefix; Text = operator
	KindPostfix // postfix ++ --
	KindRef     // \expr
	KindDeref   // sigil-cast: ${...} @$x %{...}; Text = sigil
	KindList    // (a, b) or a, b
	KindAnonArray
	KindAnonHash
	KindAnonSub   // sub BLOCK
	KindDoBlock   // do BLOCK / eval BLOCK; Text = keyword
	KindCall      // NAME(args) / NAME args / &$code(args); Text = name
	KindMethod    // invocant->name(args); Text = method name
	KindSubscript // x[...] / x{...} / ->[...] / ->{...}; Text = "[" or "{"
	KindReturn    // return [EXPR]

	KindError // error placeholder; Code holds the diagnostic

	kindCount
)

var kindNames = [...]string{
	KindInvalid:     "Invalid",
	KindProgram:     "Program",
	KindBlock:       "Block",
	KindExprStmt:    "ExprStmt",
	KindModifier:    "Modifier",
	KindStmtGroup:   "StmtGroup",
	KindSubDecl:     "SubDecl",
	KindSignature:   "Signature",
	KindPackageDecl: "PackageDecl",
	KindUseDecl:     "UseDecl",
	KindIf:          "If",
	KindElsif:       "Elsif",
	KindElse:        "Else",
	KindWhile:       "While",
	KindForC:        "ForC",
	KindForeach:     "Foreach",
	KindLoopCtl:     "LoopCtl",
	KindLabeled:     "Labeled",
	KindDataSection: "DataSection",
	KindVarDecl:     "VarDecl",
	KindVariable:    "Variable",
	KindName:        "Name",
	KindNumber:      "Number",
	KindString:      "String",
	KindQuoteLike:   "QuoteLike",
	KindRegex:       "Regex",
	KindSubst:       "Subst",
	KindTranslit:    "Translit",
	KindHeredoc:     "Heredoc",
	KindHeredocBody: "HeredocBody",
	KindBinary:      "Binary",
	KindLogical:     "Logical",
	KindAssign:      "Assign",
	KindTernary:     "Ternary",
	KindRange:       "Range",
	KindUnary:       "Unary",
	KindPostfix:     "Postfix",
	KindRef:         "Ref",
	KindDeref:       "Deref",
	KindList:        "List",
	KindAnonArray:   "AnonArray",
	KindAnonHash:    "AnonHash",
	KindAnonSub:     "AnonSub",
	KindDoBlock:     "DoBlock",
	KindCall:        "Call",
	KindMethod:      "Method",
	KindSubscript:   "Subscript",
	KindReturn:      "Return",
	KindError:       "Error",
}

func (k Kind) String() string {
	if k < kindCount && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsContainer reports whether nodes of this kind hold a statement list.
func (k Kind) IsContainer() bool {
	return k == KindProgram || k == KindBlock
}

// IsStatement reports whether k can appear directly in a statement list.
func (k Kind) IsStatement() bool {
	switch k {
	case KindExprStmt, KindStmtGroup, KindSubDecl, KindPackageDecl, KindUseDecl,
		KindIf, KindWhile, KindForC, KindForeach, KindLoopCtl, KindLabeled,
		KindDataSection, KindBlock, KindError:
		return true
	}
	return false
}

// ParseKind is the inverse of Kind.String; used by dump readers and tests.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && name != "" {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}
