package chain

const erc20ABI = `[
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

// 托管合约：最低质押由合约自己校验，distribute 只能由运营方调用
const escrowABI = `[
	{"type":"function","name":"joinGame","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"distribute","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address[]"},{"name":"amounts","type":"uint256[]"}],"outputs":[]}
]`
